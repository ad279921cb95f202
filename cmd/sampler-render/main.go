package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/ebitengine/oto/v3"
	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/quasilyte/sampler"
	"github.com/quasilyte/sampler/audiobuf"
	"github.com/quasilyte/sampler/filepool"
	"github.com/quasilyte/sampler/sfzfile"
)

// This CLI tool plays a chord with a single-region instrument.
// It either renders the result into a WAV file or plays it with oto.

func main() {
	var (
		root          = flag.String("root", ".", "samples root directory")
		sampleName    = flag.String("sample", "*sine", "sample file name relative to -root; *sine is a generator")
		notesFlag     = flag.String("notes", "60,64,67", "comma-separated MIDI keys to play")
		velocity      = flag.Uint("velocity", 100, "note velocity, [1, 127]")
		keycenter     = flag.Uint("keycenter", 60, "the key that plays the sample at its own pitch")
		hold          = flag.Duration("hold", 2*time.Second, "how long the keys are held")
		tail          = flag.Duration("tail", time.Second, "how long to render after the keys are released")
		release       = flag.Float64("release", 0.5, "amplitude envelope release, in seconds")
		sampleRate    = flag.Int("rate", 44100, "output sample rate")
		blockSize     = flag.Int("block", 512, "frames per rendered block")
		numVoices     = flag.Int("voices", 64, "max polyphony")
		preloadFrames = flag.Int("preload", filepool.DefaultPreloadFrames, "preloaded frames per sample; -1 loads whole files")
		output        = flag.String("o", "out.wav", "output WAV file")
		play          = flag.Bool("play", false, "play the result instead of writing a file")
		verbose       = flag.Bool("v", false, "enable debug logs")
	)
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "usage: sampler-render [flags]\n")
		flag.PrintDefaults()
	}
	flag.Parse()

	logLevel := slog.LevelInfo
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	keys, err := parseKeys(*notesFlag)
	if err != nil {
		panic(fmt.Errorf("parse -notes: %w", err))
	}
	if len(keys) == 0 {
		panic("-notes: no keys to play")
	}

	synth, err := sampler.New(sampler.Config{
		SampleRate:      float64(*sampleRate),
		SamplesPerBlock: *blockSize,
		NumVoices:       *numVoices,
		Logger:          logger,
		PoolConfig: filepool.Config{
			RootDir:       *root,
			PreloadFrames: *preloadFrames,
		},
	})
	if err != nil {
		panic(fmt.Errorf("create synth: %w", err))
	}
	defer synth.Close()

	region := sfzfile.NewRegion(*sampleName)
	region.PitchKeycenter = uint8(min(*keycenter, 127))
	region.AmplitudeEG.Release = float32(*release)
	// A narrow key range keeps the sample streamable.
	region.KeyRange = sfzfile.NewRange(slices.Min(keys), slices.Max(keys))
	if err := synth.LoadRegions([]*sfzfile.Region{region}); err != nil {
		panic(fmt.Errorf("load regions: %w", err))
	}
	if err := synth.Start(context.Background()); err != nil {
		panic(fmt.Errorf("start streaming: %w", err))
	}

	vel := uint8(min(max(*velocity, 1), 127))
	if *play {
		playChord(synth, keys, vel, *hold, *tail)
	} else {
		renderChord(synth, keys, vel, *hold, *tail, *output)
	}

	stats := synth.Stats()
	logger.Info("done",
		slog.Int("dropped_notes", int(stats.DroppedNotes)),
		slog.Int("stolen_voices", int(stats.StolenVoices)),
		slog.Int64("underrun_frames", stats.Pool.UnderrunFrames),
		slog.Int("memory_usage", stats.Pool.MemoryUsage))
}

func parseKeys(s string) ([]uint8, error) {
	var keys []uint8
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := strconv.ParseUint(part, 10, 7)
		if err != nil {
			return nil, err
		}
		keys = append(keys, uint8(key))
	}
	return keys, nil
}

func playChord(synth *sampler.Synth, keys []uint8, velocity uint8, hold, tail time.Duration) {
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   int(synth.SampleRate()),
		ChannelCount: 2,
		Format:       oto.FormatFloat32LE,
	})
	if err != nil {
		panic(fmt.Errorf("create audio context: %w", err))
	}
	<-ready

	// The player reads the synth on its own goroutine,
	// so the notes are sent through the event queue.
	for _, key := range keys {
		synth.Post(sampler.NoteOnEvent(0, key, velocity))
	}
	player := ctx.NewPlayer(sampler.NewFloat32Reader(synth))
	player.Play()

	time.Sleep(hold)
	for _, key := range keys {
		synth.Post(sampler.NoteOffEvent(0, key, 0))
	}
	time.Sleep(tail)

	if err := player.Close(); err != nil {
		panic(fmt.Errorf("close player: %w", err))
	}
}

func renderChord(synth *sampler.Synth, keys []uint8, velocity uint8, hold, tail time.Duration, filename string) {
	sampleRate := int(synth.SampleRate())
	blockSize := synth.SamplesPerBlock()
	holdFrames := int(hold.Seconds() * float64(sampleRate))
	totalFrames := holdFrames + int(tail.Seconds()*float64(sampleRate))

	f, err := os.Create(filename)
	if err != nil {
		panic(fmt.Errorf("create output: %w", err))
	}
	defer f.Close()

	enc := wav.NewEncoder(f, sampleRate, 16, 2, 1)
	pcm := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 2, SampleRate: sampleRate},
		SourceBitDepth: 16,
		Data:           make([]int, 0, 2*blockSize),
	}

	for _, key := range keys {
		synth.NoteOn(0, key, velocity)
	}
	block := audiobuf.NewBuffer(2, blockSize)
	released := false
	for frame := 0; frame < totalFrames; {
		n := min(blockSize, totalFrames-frame)
		if !released && frame+n > holdFrames {
			for _, key := range keys {
				synth.NoteOff(holdFrames-frame, key, 0)
			}
			released = true
		}
		out := block.Span().First(n)
		synth.RenderBlock(out)

		pcm.Data = pcm.Data[:0]
		left := out.Channel(0)
		right := out.Channel(1)
		for i := range left {
			pcm.Data = append(pcm.Data, toInt16(left[i]), toInt16(right[i]))
		}
		if err := enc.Write(pcm); err != nil {
			panic(fmt.Errorf("write output: %w", err))
		}
		frame += n
	}

	if err := enc.Close(); err != nil {
		panic(fmt.Errorf("finalize output: %w", err))
	}
}

func toInt16(v float32) int {
	return int(min(max(v, -1), 1) * 32767)
}
