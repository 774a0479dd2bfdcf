package tts

import (
	"context"
	"fmt"

	"github.com/wujunwei928/edge-tts-go/edge_tts"
)

const (
	edgeFemaleVoice = "vi-VN-HoaiMyNeural"
	edgeMaleVoice   = "vi-VN-NamMinhNeural"
)

// EdgeTTS synthesizes speech with the Microsoft Edge read-aloud voices. It
// needs no API key.
type EdgeTTS struct{}

func NewEdgeTTS() *EdgeTTS { return &EdgeTTS{} }

func (e *EdgeTTS) Name() string { return "edge" }

func (e *EdgeTTS) Synthesize(ctx context.Context, req SynthesisRequest) (*SynthesisResult, error) {
	voice := mapVoice(req.Voice, edgeFemaleVoice, edgeMaleVoice)

	type outcome struct {
		audio []byte
		err   error
	}
	done := make(chan outcome, 1)

	// the edge client has no context support; run it aside so a cancel returns promptly
	go func() {
		communicate, err := edge_tts.NewCommunicate(req.Input, edge_tts.SetVoice(voice))
		if err != nil {
			done <- outcome{err: fmt.Errorf("edge tts: %w", err)}
			return
		}

		audio, err := communicate.Stream()
		if err != nil {
			done <- outcome{err: fmt.Errorf("edge tts synthesis: %w", err)}
			return
		}
		done <- outcome{audio: audio}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case out := <-done:
		if out.err != nil {
			return nil, out.err
		}
		return &SynthesisResult{
			Audio:       out.audio,
			ContentType: "audio/mpeg",
			Extension:   ".mp3",
		}, nil
	}
}
