// Package rag serves knowledge-base context to agents.
package rag

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/rs/zerolog"
)

// FlatFileKB returns the whole knowledge-base file as context. The file is
// read once; a missing file yields an empty context.
type FlatFileKB struct {
	path   string
	once   sync.Once
	text   string
	logger *zerolog.Logger
}

func NewFlatFileKB(path string, logger *zerolog.Logger) *FlatFileKB {
	l := logger.With().Str("component", "rag").Logger()
	return &FlatFileKB{path: path, logger: &l}
}

func (k *FlatFileKB) load() {
	b, err := os.ReadFile(k.path)
	switch {
	case err == nil:
		k.text = string(b)
		k.logger.Info().Str("path", k.path).Int("bytes", len(b)).Msg("knowledge base loaded")
	case errors.Is(err, fs.ErrNotExist):
		k.logger.Warn().Str("path", k.path).Msg("knowledge base not found; using empty context")
	default:
		k.logger.Error().Err(err).Str("path", k.path).Msg("knowledge base unreadable; using empty context")
	}
}

// ContextFor returns context for the given ABAP source. The source is not
// used for ranking yet.
func (k *FlatFileKB) ContextFor(_ context.Context, _ string) string {
	k.once.Do(k.load)
	return k.text
}
