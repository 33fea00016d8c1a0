// Package audio is an umbrella for the audio I/O sub-packages:
//
//   - pcm: PCM sample formats, int16/float conversion, level metering
//   - portaudio: CGO bindings for device capture and playback
//   - rtpout: RTP streaming of decoded speech
package audio
