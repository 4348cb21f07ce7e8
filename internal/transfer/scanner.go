package transfer

import (
	"context"
	"errors"
	"sync"
)

var (
	// ErrScanAborted is reported when the scanner stops without a payload or a cause.
	ErrScanAborted = errors.New("scan aborted")
	errNoScanner   = errors.New("scanner has no start function")
)

// Scanner yields the text of one scanned code.
type Scanner interface {
	Scan(ctx context.Context) (string, error)
}

// StartFunc starts a callback-style scanner. It may invoke its callbacks from any
// goroutine, synchronously or later, and more than once.
type StartFunc func(onPayload func(text string), onError func(err error))

// CallbackScanner turns a callback-style scanner into a blocking Scanner. Only the
// first callback of a scan is delivered; later ones are dropped.
type CallbackScanner struct {
	Start StartFunc
}

type scanResult struct {
	text string
	err  error
}

func (s CallbackScanner) Scan(ctx context.Context) (string, error) {
	if s.Start == nil {
		return "", errNoScanner
	}

	results := make(chan scanResult, 1)
	var once sync.Once
	deliver := func(r scanResult) {
		once.Do(func() { results <- r })
	}

	s.Start(
		func(text string) { deliver(scanResult{text: text}) },
		func(err error) {
			if err == nil {
				err = ErrScanAborted
			}
			deliver(scanResult{err: err})
		},
	)

	select {
	case r := <-results:
		return r.text, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// StaticScanner returns the same text on every scan.
type StaticScanner string

func (s StaticScanner) Scan(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return string(s), nil
}
