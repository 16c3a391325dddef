// Package presence turns voice-channel membership changes into the lifecycle
// of a study session.
//
// Every event is a Transition carrying the channel the member was in before and
// the channel they are in after, each with that channel's membership after the
// change. Classify maps a Transition to exactly one Kind:
//
//   - KindNoOp: the member stayed in the same channel, or moved between channels
//     that are not watched.
//   - KindStart: the watched channel now holds exactly one member.
//   - KindUpdate: the watched channel gained a member beyond the first, or lost
//     one but is not empty.
//   - KindFinish: the watched channel is now empty.
//
// Controller applies a Kind to the remote session store and the Slack status
// message. Collaborator failures are logged and never returned; a missing
// session on update or finish is treated as nothing to do, which absorbs
// duplicate and late deliveries.
//
// Dispatcher decouples event sources from the controller: sources submit
// without blocking and a single worker applies transitions in order, so two
// events never race on the one session/message pair.
package presence
