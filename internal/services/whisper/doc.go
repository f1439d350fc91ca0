// Package whisper runs local speech-to-text through a bundled mlx-whisper
// script. The script is provisioned to disk and launched via uv; its stderr
// carries JSON progress lines that ParseLine maps onto task record patches.
package whisper
