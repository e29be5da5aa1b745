package services

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/bogem/id3v2/v2"
	"github.com/stretchr/testify/require"
)

// a few bytes of an MPEG frame header followed by silence
var fakeMP3Audio = append([]byte{0xFF, 0xFB, 0x90, 0x64}, make([]byte, 256)...)

// writeTaggedMP3 writes an MP3 file carrying an ID3v2 tag. Empty fields are
// left out of the tag.
func writeTaggedMP3(t *testing.T, path, title, artist, album, track string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, fakeMP3Audio, 0644))

	tag, err := id3v2.Open(path, id3v2.Options{Parse: true})
	require.NoError(t, err)
	defer tag.Close()

	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	if title != "" {
		tag.SetTitle(title)
	}
	if artist != "" {
		tag.SetArtist(artist)
	}
	if album != "" {
		tag.SetAlbum(album)
	}
	if track != "" {
		tag.AddTextFrame(tag.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, track)
	}
	require.NoError(t, tag.Save())
}

// writeUntagged writes a file with no readable tags
func writeUntagged(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte("not really audio"), 0644))
}
