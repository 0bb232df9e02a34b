package cli

import (
	"bufio"
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/carevault/carevault/internal/client/client"
	"github.com/carevault/carevault/internal/client/services"
)

type stubRecordService struct {
	saved   map[string][]byte
	entries []services.Entry
	getErr  error
	listErr error
	deleted []string
}

func (s *stubRecordService) Save(ctx context.Context, period, subkey string, plaintext []byte) error {
	if s.saved == nil {
		s.saved = map[string][]byte{}
	}
	s.saved[period+"|"+subkey] = plaintext
	return nil
}

func (s *stubRecordService) Get(ctx context.Context, period, subkey string) (*services.Entry, error) {
	if s.getErr != nil {
		return nil, s.getErr
	}
	return &s.entries[0], nil
}

func (s *stubRecordService) List(ctx context.Context) ([]services.Entry, error) {
	return s.entries, s.listErr
}

func (s *stubRecordService) Delete(ctx context.Context, period, subkey string) error {
	s.deleted = append(s.deleted, period+"|"+subkey)
	return nil
}

func TestAppSubmit(t *testing.T) {
	silencePrintln(t)
	stubInput(t, []string{"2026-W35", "mom"}, nil)

	recs := &stubRecordService{}
	a := &App{recordService: recs, reader: bufio.NewReader(strings.NewReader("monday: physio\n\n"))}

	require.NoError(t, a.Submit(context.Background()))
	assert.Equal(t, []byte("monday: physio"), recs.saved["2026-W35|mom"])
}

func TestAppSubmit_EmptyBody(t *testing.T) {
	silencePrintln(t)
	stubInput(t, []string{"2026-W35", ""}, nil)

	recs := &stubRecordService{}
	a := &App{recordService: recs, reader: bufio.NewReader(strings.NewReader("\n"))}

	require.Error(t, a.Submit(context.Background()))
	assert.Empty(t, recs.saved)
}

func TestAppShow_MissingRecordIsNotAnError(t *testing.T) {
	lines := silencePrintln(t)
	stubInput(t, []string{"2026-W40", ""}, nil)

	recs := &stubRecordService{getErr: client.ErrLocalDataNotAvailable}
	a := &App{recordService: recs}

	require.NoError(t, a.Show(context.Background()))
	assert.Contains(t, strings.Join(*lines, "\n"), "No record")
}

func TestAppList_SortsNewestFirst(t *testing.T) {
	lines := silencePrintln(t)

	recs := &stubRecordService{entries: []services.Entry{
		{Period: "2026-W35", Payload: []byte("older"), Version: 1},
		{Period: "2026-W36", Payload: []byte("newer"), Version: 2},
	}}
	a := &App{recordService: recs}

	require.NoError(t, a.List(context.Background()))
	out := strings.Join(*lines, "\n")
	assert.Less(t, strings.Index(out, "2026-W36"), strings.Index(out, "2026-W35"))
}

func TestAppDelete(t *testing.T) {
	silencePrintln(t)
	stubInput(t, []string{"2026-W35", ""}, nil)

	recs := &stubRecordService{}
	a := &App{recordService: recs}

	require.NoError(t, a.Delete(context.Background()))
	assert.Equal(t, []string{"2026-W35|"}, recs.deleted)
}
