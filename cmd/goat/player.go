package main

import (
	"io"

	"github.com/ebitengine/oto/v3"
)

type player struct {
	ctx *oto.Context
	p   *oto.Player
}

// newPlayer opens a mono float32 output context and attaches r to it.
func newPlayer(sampleRate int, r io.Reader) (*player, error) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   sampleRate,
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		return nil, err
	}
	<-ready
	return &player{ctx: ctx, p: ctx.NewPlayer(r)}, nil
}

func (p *player) Play() { p.p.Play() }

func (p *player) Close() error {
	if err := p.p.Close(); err != nil {
		return err
	}
	return p.ctx.Suspend()
}
