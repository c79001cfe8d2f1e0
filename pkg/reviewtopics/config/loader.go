package config

import (
	"fmt"

	"github.com/cognicore/reviewtopics/pkg/reviewtopics/preprocess"
	"github.com/cognicore/reviewtopics/pkg/reviewtopics/stoplist"
)

// Loader loads the text-processing configuration files and constructs components
type Loader struct {
	StoplistPath string
	// ReplaceDefaults drops the built-in English list instead of extending it.
	ReplaceDefaults bool
}

// Components holds all loaded configuration components
type Components struct {
	Stopwords    *stoplist.Set
	Preprocessor *preprocess.Preprocessor
}

// Load reads all configuration files and returns initialized components
func (l *Loader) Load() (*Components, error) {
	stops := stoplist.Default()
	if l.ReplaceDefaults {
		stops = stoplist.New(nil)
	}

	if l.StoplistPath != "" {
		sl, err := LoadStoplist(l.StoplistPath)
		if err != nil {
			return nil, fmt.Errorf("load stoplist: %w", err)
		}
		stops = stops.WithExtra(sl.Terms)
	}

	return &Components{
		Stopwords:    stops,
		Preprocessor: preprocess.New(stops),
	}, nil
}
