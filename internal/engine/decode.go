package engine

import (
	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// decode turns an opened source into a streamer. On error the source is
// closed.
func decode(src *Source) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		streamer beep.StreamSeekCloser
		format   beep.Format
		err      error
	)
	switch src.Ext {
	case ".mp3":
		streamer, format, err = mp3.Decode(src)
	case ".flac":
		streamer, format, err = flac.Decode(src)
	case ".wav":
		streamer, format, err = wav.Decode(src)
	case ".ogg":
		streamer, format, err = vorbis.Decode(src)
	default:
		src.Close()
		return nil, beep.Format{}, errors.Wrapf(ErrUnsupportedFormat, "%q", src.Ext)
	}
	if err != nil {
		src.Close()
		return nil, beep.Format{}, errors.Wrapf(err, "decode %s", src.Ext)
	}
	return streamer, format, nil
}

// IsSupportedExt reports whether ext (with dot, lower-case) can be decoded.
func IsSupportedExt(ext string) bool {
	switch ext {
	case ".mp3", ".flac", ".wav", ".ogg":
		return true
	}
	return false
}
