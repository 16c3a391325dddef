// Package chat is a presence source backed by Twitch chat membership.
//
// With the twitch.tv/membership capability Twitch reports viewers joining and
// leaving a channel's chat (batched, roughly every ten seconds). Source keeps a
// roster of the channel and turns each JOIN and PART into a
// presence.Transition, so a chat room can stand in for a voice channel. The
// initial NAMES list seeds the roster silently.
//
// Credentials: the IRC client needs the bot username and a user OAuth token
// with chat:read scope. Display names are not carried by JOIN/PART; members
// are identified by login and named through a names.Resolver such as
// twitchapi.NameResolver.
package chat
