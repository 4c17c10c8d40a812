// Package combine joins uploaded media files into a single artifact using
// an external encoder.
package combine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/genmedia-gateway/internal/archive"
	"github.com/JakeFAU/genmedia-gateway/internal/config"
	"github.com/JakeFAU/genmedia-gateway/internal/diag"
	"github.com/JakeFAU/genmedia-gateway/internal/id/uuid"
	"github.com/JakeFAU/genmedia-gateway/internal/telemetry"
)

// ErrEncoderUnavailable means the external encoder cannot run. Callers
// should surface the suggestion alongside a service-unavailable answer.
var ErrEncoderUnavailable = errors.New("media encoder unavailable; install ffmpeg and ensure it is on PATH")

// ErrTooFewInputs means fewer than two files were submitted.
var ErrTooFewInputs = errors.New("combining requires at least two files")

// ErrTooManyInputs means the submission exceeds the configured file cap.
var ErrTooManyInputs = errors.New("too many files submitted")

// Input is one uploaded media file.
type Input struct {
	Name string
	Data io.Reader
}

// Result is the combined artifact, fully materialized.
type Result struct {
	Name        string
	ContentType string
	Data        []byte
}

// Pipeline stages uploads on disk, invokes the encoder, and reads the
// combined artifact back. Temporary files are always removed, success or
// failure.
type Pipeline struct {
	enc      Encoder
	cfg      config.CombineConfig
	archiver archive.Store
	hub      *diag.Hub
	ids      *uuid.Generator
	logger   *zap.Logger
}

// New wires a Pipeline. archiver may be nil to skip artifact archival.
func New(enc Encoder, cfg config.CombineConfig, archiver archive.Store, hub *diag.Hub, logger *zap.Logger) *Pipeline {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.TmpDir == "" {
		cfg.TmpDir = os.TempDir()
	}
	return &Pipeline{
		enc:      enc,
		cfg:      cfg,
		archiver: archiver,
		hub:      hub,
		ids:      uuid.NewGenerator(),
		logger:   logger,
	}
}

// Combine joins the inputs in submission order and returns the artifact.
func (p *Pipeline) Combine(ctx context.Context, inputs []Input) (*Result, error) {
	if len(inputs) < 2 {
		return nil, ErrTooFewInputs
	}
	if p.cfg.MaxFiles > 0 && len(inputs) > p.cfg.MaxFiles {
		return nil, fmt.Errorf("%w: got %d, limit %d", ErrTooManyInputs, len(inputs), p.cfg.MaxFiles)
	}
	if err := p.enc.Check(); err != nil {
		p.logger.Error("encoder check failed", zap.Error(err))
		telemetry.CountCombineJob("encoder_unavailable")
		return nil, fmt.Errorf("%w: %s", ErrEncoderUnavailable, err)
	}

	var temps []string
	defer func() {
		// Best effort: a file we cannot delete is logged and left behind
		// rather than failing the request.
		for _, path := range temps {
			if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
				p.logger.Warn("temp file not removed", zap.String("path", path), zap.Error(err))
			}
		}
	}()

	staged := make([]string, 0, len(inputs))
	for i, in := range inputs {
		path, err := p.stage(i, in)
		if path != "" {
			temps = append(temps, path)
		}
		if err != nil {
			telemetry.CountCombineJob("stage_error")
			return nil, fmt.Errorf("staging upload %d: %w", i, err)
		}
		staged = append(staged, path)
	}

	outPath, err := p.tempName("combined", ".mp4")
	if err != nil {
		return nil, err
	}
	temps = append(temps, outPath)

	if err := p.enc.Concat(ctx, staged, outPath); err != nil {
		telemetry.CountCombineJob("encode_error")
		return nil, err
	}

	info, err := os.Stat(outPath)
	if err != nil {
		telemetry.CountCombineJob("encode_error")
		return nil, fmt.Errorf("encoder produced no output: %w", err)
	}
	limit := p.outputLimit(len(inputs))
	if info.Size() > limit {
		telemetry.CountCombineJob("encode_error")
		return nil, fmt.Errorf("combined output is %d bytes, over the %d byte limit", info.Size(), limit)
	}

	data, err := readBounded(outPath, limit)
	if err != nil {
		telemetry.CountCombineJob("encode_error")
		return nil, fmt.Errorf("reading combined output: %w", err)
	}

	telemetry.CountCombineJob("ok")
	result := &Result{
		Name:        filepath.Base(outPath),
		ContentType: "video/mp4",
		Data:        data,
	}
	p.archiveDetached(result)
	return result, nil
}

// stage copies one upload to a collision-resistant temp path.
func (p *Pipeline) stage(index int, in Input) (string, error) {
	ext := filepath.Ext(in.Name)
	if ext == "" {
		ext = ".mp4"
	}
	path, err := p.tempName(fmt.Sprintf("input-%d", index), ext)
	if err != nil {
		return "", err
	}

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create temp file: %w", err)
	}
	defer f.Close()

	src := in.Data
	if p.cfg.MaxFileBytes > 0 {
		src = io.LimitReader(src, p.cfg.MaxFileBytes+1)
	}
	n, err := io.Copy(f, src)
	if err != nil {
		return path, fmt.Errorf("write temp file: %w", err)
	}
	if p.cfg.MaxFileBytes > 0 && n > p.cfg.MaxFileBytes {
		return path, fmt.Errorf("file %q exceeds the %d byte limit", in.Name, p.cfg.MaxFileBytes)
	}
	return path, nil
}

func (p *Pipeline) tempName(prefix, ext string) (string, error) {
	id, err := p.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("temp name: %w", err)
	}
	return filepath.Join(p.cfg.TmpDir, fmt.Sprintf("%s-%s%s", prefix, id, ext)), nil
}

func (p *Pipeline) outputLimit(n int) int64 {
	per := p.cfg.MaxFileBytes
	if per <= 0 {
		per = 500 << 20
	}
	return per * int64(n)
}

func readBounded(path string, limit int64) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, io.LimitReader(f, limit)); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// archiveDetached saves the artifact without blocking the response.
func (p *Pipeline) archiveDetached(result *Result) {
	if p.archiver == nil {
		return
	}
	data := result.Data
	name := result.Name
	contentType := result.ContentType
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		ref, err := p.archiver.Save(ctx, name, contentType, bytes.NewReader(data))
		if err != nil {
			p.logger.Warn("artifact archival failed", zap.String("name", name), zap.Error(err))
			p.hub.Emit(diag.Event{
				Kind:   diag.KindArchive,
				Detail: name,
				Err:    err.Error(),
			})
			return
		}
		p.logger.Info("artifact archived", zap.String("name", name), zap.String("ref", ref))
	}()
}
