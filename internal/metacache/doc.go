// Package metacache persists yt-dlp probe results in a small SQLite
// database. It exists so resubmitting a URL does not pay for a second
// metadata round trip; losing the cache costs nothing but that.
package metacache
