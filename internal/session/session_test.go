package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"heic_converter/internal/codec"
	"heic_converter/internal/converter"
	"heic_converter/internal/download"
	"heic_converter/internal/packager"
)

// markerCodec writes "<input>-><target>" and fails inputs containing "bad".
type markerCodec struct{}

func (markerCodec) Encode(_ context.Context, src io.Reader, target codec.Format, _ float64, dst io.Writer) error {
	data, _ := io.ReadAll(src)
	if strings.Contains(string(data), "bad") {
		return errors.New("corrupt")
	}
	_, err := fmt.Fprintf(dst, "%s->%s", data, target)
	return err
}

// flakyDownloader fails the first n downloads, then records the rest.
type flakyDownloader struct {
	failures int
	download.Collector
}

func (f *flakyDownloader) Download(ctx context.Context, d packager.Deliverable) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("save dialog dismissed")
	}
	return f.Collector.Download(ctx, d)
}

func heic(name string) converter.InputFile {
	return converter.InputFile{Name: name, MIMEType: "image/heic", Data: []byte(name)}
}

func png(name string) converter.InputFile {
	return converter.InputFile{Name: name, MIMEType: "image/png", Data: []byte(name)}
}

func newSession(dl packager.Downloader, target codec.Format) *Session {
	conv := converter.New(converter.NewAdapter(markerCodec{}, nil), nil)
	return New(conv, packager.NewDispatcher(dl, nil), target)
}

func TestSession_AddAssignsIndexes(t *testing.T) {
	s := newSession(&download.Collector{}, codec.PNG)
	s.Add(heic("a.heic"), heic("b.heic"))
	s.Add(heic("c.heic"))

	pending := s.Pending()
	require.Len(t, pending, 3)
	for i, f := range pending {
		assert.Equal(t, i, f.Index)
	}
}

func TestSession_ConvertAndDeliver(t *testing.T) {
	dl := &download.Collector{}
	s := newSession(dl, codec.JPEG)
	s.Add(heic("one.heic"), heic("two.heic"))

	res, err := s.Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, res, 2)

	require.NoError(t, s.Deliver(context.Background(), packager.Individual))
	got := dl.Deliverables()
	require.Len(t, got, 2)
	assert.Equal(t, "one.jpg", got[0].Name)
	assert.Equal(t, "one.heic->jpeg", string(got[0].Data))
	assert.Equal(t, "image/jpeg", got[0].MIMEType)
	assert.Equal(t, "two.jpg", got[1].Name)
}

func TestSession_DeliverWithoutResult(t *testing.T) {
	s := newSession(&download.Collector{}, codec.PNG)
	assert.ErrorIs(t, s.Deliver(context.Background(), packager.Zip), ErrNothingConverted)

	_, err := s.Convert(context.Background())
	require.NoError(t, err)
	assert.ErrorIs(t, s.Deliver(context.Background(), packager.Zip), ErrNothingConverted)
}

func TestSession_SetTargetDiscardsResult(t *testing.T) {
	s := newSession(&download.Collector{}, codec.PNG)
	s.Add(heic("a.heic"))
	_, err := s.Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, s.Result(), 1)

	s.SetTarget(codec.PNG)
	assert.Len(t, s.Result(), 1, "same target keeps the result")

	s.SetTarget(codec.JPEG)
	assert.Nil(t, s.Result())
	assert.Equal(t, codec.JPEG, s.Target())
	assert.ErrorIs(t, s.Deliver(context.Background(), packager.Individual), ErrNothingConverted)
}

func TestSession_ConvertReplacesResult(t *testing.T) {
	s := newSession(&download.Collector{}, codec.PNG)
	s.Add(heic("a.heic"))
	first, err := s.Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, first, 1)

	s.Add(heic("b.heic"))
	second, err := s.Convert(context.Background())
	require.NoError(t, err)
	require.Len(t, second, 2)
	assert.Equal(t, second, s.Result())
}

func TestSession_AllFailedClearsResult(t *testing.T) {
	s := newSession(&download.Collector{}, codec.PNG)
	s.Add(heic("good.heic"))
	_, err := s.Convert(context.Background())
	require.NoError(t, err)

	s.Reset()
	s.Add(heic("bad.heic"))
	_, err = s.Convert(context.Background())
	assert.ErrorIs(t, err, converter.ErrAllConversionsFailed)
	assert.Nil(t, s.Result())
}

func TestSession_UnsupportedInputsFail(t *testing.T) {
	s := newSession(&download.Collector{}, codec.PNG)
	s.Add(png("already.png"))
	_, err := s.Convert(context.Background())

	var all *converter.AllConversionsFailedError
	require.ErrorAs(t, err, &all)
	require.Len(t, all.Failures, 1)
	var unsupported *converter.UnsupportedInputError
	assert.ErrorAs(t, all.Failures[0].Err, &unsupported)
}

func TestSession_DeliverCanBeRetried(t *testing.T) {
	dl := &flakyDownloader{failures: 1}
	s := newSession(dl, codec.PNG)
	s.Add(heic("a.heic"), heic("b.heic"))
	_, err := s.Convert(context.Background())
	require.NoError(t, err)

	err = s.Deliver(context.Background(), packager.Zip)
	var perr *packager.PackagingError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, dl.Deliverables())
	require.Len(t, s.Result(), 2, "failed delivery keeps the result")

	require.NoError(t, s.Deliver(context.Background(), packager.Zip))
	got := dl.Deliverables()
	require.Len(t, got, 1)
	assert.Equal(t, "application/zip", got[0].MIMEType)
}

func TestSession_Reset(t *testing.T) {
	s := newSession(&download.Collector{}, codec.HEIC)
	s.Add(png("a.png"))
	_, err := s.Convert(context.Background())
	require.NoError(t, err)

	s.Reset()
	assert.Empty(t, s.Pending())
	assert.Nil(t, s.Result())
	assert.Equal(t, codec.HEIC, s.Target())
}
