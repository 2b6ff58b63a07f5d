package pipeline

import (
	"context"
	"errors"

	"github.com/minios-linux/doctrans/container"
	"github.com/minios-linux/doctrans/ooxml"
	"github.com/minios-linux/doctrans/translate"
)

// Kind is the error category reported per file.
type Kind string

const (
	KindNone               Kind = ""
	KindBadExtension       Kind = "BadExtension"
	KindArchiveCorrupt     Kind = "ArchiveCorrupt"
	KindArchiveWrite       Kind = "ArchiveWriteError"
	KindMalformedPart      Kind = "MalformedPart"
	KindTranslationFailed  Kind = "TranslationFailed"
	KindMissingTranslation Kind = "MissingTranslation"
	KindScratchIO          Kind = "ScratchIOError"
	KindServiceError       Kind = "ServiceError"
	KindPublishFailed      Kind = "PublishFailed"
	KindCanceled           Kind = "Canceled"
	KindUnknown            Kind = "Unknown"
)

// ErrPublish wraps failures to deliver a finished output.
var ErrPublish = errors.New("publish failed")

// Classify maps an error to its Kind using only sentinel errors.
func Classify(err error) Kind {
	switch {
	case err == nil:
		return KindNone
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ooxml.ErrBadExtension):
		return KindBadExtension
	case errors.Is(err, ooxml.ErrMalformedPart):
		return KindMalformedPart
	case errors.Is(err, ooxml.ErrMissingTranslation):
		return KindMissingTranslation
	// TranslationFailed wraps the client's ServiceError, so it goes first.
	case errors.Is(err, translate.ErrTranslationFailed):
		return KindTranslationFailed
	case errors.Is(err, translate.ErrService):
		return KindServiceError
	case errors.Is(err, container.ErrArchiveCorrupt):
		return KindArchiveCorrupt
	case errors.Is(err, container.ErrArchiveWrite):
		return KindArchiveWrite
	case errors.Is(err, container.ErrScratchIO):
		return KindScratchIO
	case errors.Is(err, ErrPublish):
		return KindPublishFailed
	}
	return KindUnknown
}
