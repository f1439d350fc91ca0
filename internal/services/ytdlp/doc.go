// Package ytdlp builds yt-dlp invocations and interprets the tool's
// line-oriented output. Argument builders cover media downloads, subtitle
// fetches, and blocking metadata probes; ParseLine maps progress lines onto
// task record patches.
package ytdlp
