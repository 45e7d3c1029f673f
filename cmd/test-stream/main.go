// Command test-stream replays a WAV file through the streaming decoder as if
// it were live microphone input, printing each partial transcript, then
// compares the streamed result with a single record-then-decode pass.
//
// Usage:
//
//	go run ./cmd/test-stream --model models/ggml-base.en.bin --wav samples/jfk.wav [--realtime]
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/go-audio/wav"

	"github.com/chaz8081/wisprwave/internal/audio"
	"github.com/chaz8081/wisprwave/internal/stream"
	"github.com/chaz8081/wisprwave/internal/transcribe"
	"github.com/chaz8081/wisprwave/internal/transcribe/whispercpp"
)

func main() {
	modelPath := flag.String("model", "models/ggml-base.en.bin", "whisper ggml model")
	wavPath := flag.String("wav", "", "WAV file to replay")
	chunk := flag.Duration("chunk", 100*time.Millisecond, "chunk size")
	interval := flag.Duration("interval", stream.DefaultDecodeInterval, "decode interval")
	realtime := flag.Bool("realtime", false, "pace chunks at wall-clock speed")
	flag.Parse()

	if *wavPath == "" {
		fmt.Fprintln(os.Stderr, "--wav is required")
		os.Exit(2)
	}

	samples, err := loadWAV(*wavPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Loaded %.1fs of audio from %s\n", float64(len(samples))/transcribe.SampleRate, *wavPath)

	engine, err := whispercpp.New(*modelPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx := context.Background()

	start := time.Now()
	streamed, err := replay(ctx, engine, samples, *chunk, *interval, *realtime)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("\nStreamed (%s): %q\n", time.Since(start).Round(time.Millisecond), streamed)

	start = time.Now()
	segs, err := engine.Transcribe(ctx, samples, 0)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	batch := transcribe.JoinSegments(segs)
	fmt.Printf("Batch    (%s): %q\n", time.Since(start).Round(time.Millisecond), batch)

	r := transcribe.ComputeWER(batch, streamed)
	fmt.Printf("WER vs batch: %.1f%% (S=%d I=%d D=%d, %d words)\n",
		r.WER*100, r.Substitutions, r.Insertions, r.Deletions, r.RefWords)
}

func replay(ctx context.Context, engine transcribe.Engine, samples []float32, chunk, interval time.Duration, realtime bool) (string, error) {
	coord := stream.New(engine, stream.WithDecodeInterval(interval))
	coord.Start(ctx)

	done := make(chan struct{})
	go func() {
		defer close(done)
		for u := range coord.Updates() {
			if u.Err != nil {
				fmt.Printf("  [%5.1fs] error: %v\n", coord.Duration(), u.Err)
				continue
			}
			fmt.Printf("  [%5.1fs] %s\n", coord.Duration(), u.Text)
		}
	}()

	n := int(chunk.Seconds() * transcribe.SampleRate)
	for off := 0; off < len(samples); off += n {
		end := min(off+n, len(samples))
		coord.Push(samples[off:end])
		if realtime {
			time.Sleep(chunk)
		}
	}

	text, err := coord.Finish(ctx)
	<-done
	return text, err
}

// loadWAV decodes a PCM WAV file into 16 kHz mono float samples.
func loadWAV(path string) ([]float32, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening WAV: %w", err)
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%s is not a valid WAV file", path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decoding WAV: %w", err)
	}

	scale := float32(int(1) << (buf.SourceBitDepth - 1))
	raw := make([]float32, len(buf.Data))
	for i, s := range buf.Data {
		raw[i] = float32(s) / scale
	}
	return audio.Resample(raw, uint32(buf.Format.SampleRate), uint32(buf.Format.NumChannels)), nil
}
