// Package language normalizes language identifiers for subtitle selection
// and transcription hints. It resolves codes, BCP 47 tags, and English names
// to ISO 639-1, and can guess a language from the script of a media title.
package language
