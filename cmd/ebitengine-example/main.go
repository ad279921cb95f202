package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/audio"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/quasilyte/sampler"
	"github.com/quasilyte/sampler/filepool"
	"github.com/quasilyte/sampler/sfzfile"
)

// This simple program turns the keyboard into a sampler keyboard
// using Ebitengine audio player.
//
// The middle row (A S D F G H J K) plays the C major scale starting from C4;
// holding SPACE acts like a sustain pedal.

var pianoKeys = []struct {
	key  ebiten.Key
	note uint8
}{
	{ebiten.KeyA, 60},
	{ebiten.KeyS, 62},
	{ebiten.KeyD, 64},
	{ebiten.KeyF, 65},
	{ebiten.KeyG, 67},
	{ebiten.KeyH, 69},
	{ebiten.KeyJ, 71},
	{ebiten.KeyK, 72},
}

func main() {
	keycenter := flag.Uint("keycenter", 60, "the key that plays the sample at its own pitch")
	flag.Usage = func() {
		fmt.Printf("usage: go run ./cmd/ebitengine-example [path/to/sample.wav]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	sampleName := "*sine"
	if len(flag.Args()) != 0 {
		sampleName = flag.Args()[0]
	}

	const sampleRate = 44100
	synth, err := sampler.New(sampler.Config{
		SampleRate: sampleRate,
		PoolConfig: filepool.Config{RootDir: "."},
	})
	if err != nil {
		panic(err)
	}
	defer synth.Close()

	region := sfzfile.NewRegion(sampleName)
	region.PitchKeycenter = uint8(min(*keycenter, 127))
	region.AmplitudeEG.Attack = 0.005
	region.AmplitudeEG.Release = 0.4
	if err := synth.LoadRegions([]*sfzfile.Region{region}); err != nil {
		fmt.Fprintf(os.Stderr, "load %s: %v\n", sampleName, err)
		os.Exit(1)
	}
	if err := synth.Start(context.Background()); err != nil {
		panic(err)
	}

	// Ebitengine reads the synth output on its own goroutine:
	// the game sends the notes through the synth event queue.
	audioContext := audio.NewContext(sampleRate)
	player, err := audioContext.NewPlayer(sampler.NewPCM16Reader(synth))
	if err != nil {
		panic(err)
	}
	player.Play()

	g := &game{
		synth:      synth,
		player:     player,
		sampleName: sampleName,
	}
	if err := ebiten.RunGame(g); err != nil {
		panic(err)
	}
}

type game struct {
	synth  *sampler.Synth
	player *audio.Player

	sampleName string
}

func (g *game) Update() error {
	for _, k := range pianoKeys {
		if inpututil.IsKeyJustPressed(k.key) {
			g.synth.Post(sampler.NoteOnEvent(0, k.note, 100))
		}
		if inpututil.IsKeyJustReleased(k.key) {
			g.synth.Post(sampler.NoteOffEvent(0, k.note, 0))
		}
	}

	if inpututil.IsKeyJustPressed(ebiten.KeySpace) {
		g.synth.Post(sampler.CCEvent(0, 64, 1))
	}
	if inpututil.IsKeyJustReleased(ebiten.KeySpace) {
		g.synth.Post(sampler.CCEvent(0, 64, 0))
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		g.synth.Post(sampler.AllSoundOffEvent())
	}

	return nil
}

func (g *game) Draw(screen *ebiten.Image) {
	ebitenutil.DebugPrint(screen, fmt.Sprintf("Playing %s: A-K keys play notes, SPACE is the sustain pedal\nActive voices: %d",
		g.sampleName, g.synth.NumActiveVoices()))
}

func (g *game) Layout(_, _ int) (int, int) {
	return 640, 480
}
