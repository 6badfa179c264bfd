package mpv

import (
	"bufio"
	"context"
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/karaplayer/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var _ domain.Backend = (*Backend)(nil)

// fakeMpv answers the subset of the IPC protocol the backend uses
type fakeMpv struct {
	conn         net.Conn
	withEntryIDs bool

	writeMu sync.Mutex
	mu      sync.Mutex
	props   map[string]any
	loads   []map[string]any
	entry   int64
	stops   int
}

func newFakeMpv(conn net.Conn, withEntryIDs bool) *fakeMpv {
	return &fakeMpv{
		conn:         conn,
		withEntryIDs: withEntryIDs,
		props: map[string]any{
			"pause":       false,
			"mpv-version": "mpv 0.38.0",
			"duration":    180.0,
			"time-pos":    0.0,
		},
	}
}

func (f *fakeMpv) send(v any) {
	line, _ := json.Marshal(v)
	f.writeMu.Lock()
	defer f.writeMu.Unlock()
	_, _ = f.conn.Write(append(line, '\n'))
}

func (f *fakeMpv) reply(id int64, data any) {
	f.send(map[string]any{"request_id": id, "error": "success", "data": data})
}

func (f *fakeMpv) serve() {
	scanner := bufio.NewScanner(f.conn)
	for scanner.Scan() {
		var req struct {
			Command   json.RawMessage `json:"command"`
			RequestID int64           `json:"request_id"`
		}
		if err := json.Unmarshal(scanner.Bytes(), &req); err != nil {
			continue
		}

		var positional []any
		if err := json.Unmarshal(req.Command, &positional); err != nil {
			var named map[string]any
			_ = json.Unmarshal(req.Command, &named)
			f.loadfile(req.RequestID, named)
			continue
		}

		switch positional[0] {
		case "observe_property":
			f.reply(req.RequestID, nil)
		case "get_property":
			f.mu.Lock()
			v, ok := f.props[positional[1].(string)]
			f.mu.Unlock()
			if !ok {
				f.send(map[string]any{"request_id": req.RequestID, "error": "property unavailable"})
				continue
			}
			f.reply(req.RequestID, v)
		case "set_property":
			key := positional[1].(string)
			f.mu.Lock()
			old := f.props[key]
			f.props[key] = positional[2]
			f.mu.Unlock()
			f.reply(req.RequestID, nil)
			if key == "pause" && old != positional[2] {
				f.send(map[string]any{"event": "property-change", "id": 1, "name": "pause", "data": positional[2]})
			}
		case "stop":
			f.mu.Lock()
			f.stops++
			entry := f.entry
			f.mu.Unlock()
			f.reply(req.RequestID, nil)
			f.send(map[string]any{"event": "end-file", "reason": "stop", "playlist_entry_id": entry})
		case "quit":
			f.reply(req.RequestID, nil)
			f.conn.Close()
			return
		}
	}
}

func (f *fakeMpv) loadfile(id int64, cmd map[string]any) {
	f.mu.Lock()
	f.entry++
	entry := f.entry
	f.loads = append(f.loads, cmd)
	f.mu.Unlock()

	if f.withEntryIDs {
		f.reply(id, map[string]any{"playlist_entry_id": entry})
	} else {
		f.reply(id, nil)
	}
	f.send(map[string]any{"event": "start-file", "playlist_entry_id": entry})
	f.send(map[string]any{"event": "file-loaded"})
}

func (f *fakeMpv) endFile(entry int64, reason, fileError string) {
	f.send(map[string]any{"event": "end-file", "reason": reason, "playlist_entry_id": entry, "file_error": fileError})
}

func (f *fakeMpv) lastEntry() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.entry
}

func (f *fakeMpv) setProp(key string, v any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.props[key] = v
}

func newTestBackend(t *testing.T, withEntryIDs bool) (*Backend, *fakeMpv) {
	t.Helper()
	client, server := net.Pipe()
	fake := newFakeMpv(server, withEntryIDs)
	go fake.serve()

	b := NewBackend(zap.NewNop(), Options{RuntimeDir: t.TempDir()})
	b.connect = func(ctx context.Context) (net.Conn, error) { return client, nil }
	require.NoError(t, b.Open(context.Background()))
	t.Cleanup(func() { _ = b.Close(context.Background()) })
	return b, fake
}

func tempFile(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("data"), 0644))
	return path
}

func expectEvent(t *testing.T, ch <-chan domain.BackendEvent, kind domain.BackendEventKind) domain.BackendEvent {
	t.Helper()
	select {
	case ev, ok := <-ch:
		require.True(t, ok, "stream closed while waiting for %s", kind)
		require.Equal(t, kind, ev.Kind)
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timeout waiting for %s", kind)
	}
	return domain.BackendEvent{}
}

func expectNoEvent(t *testing.T, ch <-chan domain.BackendEvent) {
	t.Helper()
	select {
	case ev, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event %s", ev.Kind)
		}
	case <-time.After(100 * time.Millisecond):
	}
}

func TestBackend_PlaybackLifecycle(t *testing.T) {
	for _, withIDs := range []bool{false, true} {
		name := "Legacy mpv"
		if withIDs {
			name = "mpv with playlist entry ids"
		}
		t.Run(name, func(t *testing.T) {
			b, fake := newTestBackend(t, withIDs)
			ctx := context.Background()

			song := tempFile(t, "song.mkv")
			sub := tempFile(t, "song.ass")
			h, err := b.Load(ctx, domain.Media{Path: song, SubtitlePath: sub})
			require.NoError(t, err)
			events := b.Subscribe(h)

			require.NoError(t, b.Play(ctx, h))
			expectEvent(t, events, domain.MediaStarted)

			fake.mu.Lock()
			require.Len(t, fake.loads, 1)
			load := fake.loads[0]
			fake.mu.Unlock()
			assert.Equal(t, song, load["url"])
			assert.Equal(t, "replace", load["flags"])
			assert.Equal(t, sub, load["options"].(map[string]any)["sub-files"])

			require.NoError(t, b.Pause(ctx, h))
			expectEvent(t, events, domain.MediaPaused)

			require.NoError(t, b.Resume(ctx, h))
			expectEvent(t, events, domain.MediaResumed)

			fake.endFile(fake.lastEntry(), "eof", "")
			expectEvent(t, events, domain.MediaEndReached)
		})
	}
}

func TestBackend_LoadFailures(t *testing.T) {
	b, _ := newTestBackend(t, true)
	dir := t.TempDir()

	tests := []struct {
		name  string
		media domain.Media
	}{
		{name: "Missing media", media: domain.Media{Path: filepath.Join(dir, "missing.mkv")}},
		{name: "Missing subtitle", media: domain.Media{Path: tempFile(t, "song.mkv"), SubtitlePath: filepath.Join(dir, "missing.ass")}},
		{name: "Directory", media: domain.Media{Path: dir}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Load(context.Background(), tt.media)
			assert.ErrorIs(t, err, domain.ErrLoadFailed)
		})
	}
}

func TestBackend_InvalidState(t *testing.T) {
	b, _ := newTestBackend(t, true)
	ctx := context.Background()

	h, err := b.Load(ctx, domain.Media{Path: tempFile(t, "song.mkv")})
	require.NoError(t, err)

	assert.ErrorIs(t, b.Pause(ctx, h), domain.ErrInvalidState, "cannot pause before play")
	assert.ErrorIs(t, b.Resume(ctx, h), domain.ErrInvalidState)

	require.NoError(t, b.Play(ctx, h))
	assert.ErrorIs(t, b.Play(ctx, h), domain.ErrInvalidState, "cannot play twice")
	assert.ErrorIs(t, b.Resume(ctx, h), domain.ErrInvalidState, "cannot resume while playing")

	require.NoError(t, b.Stop(ctx, h))
	assert.ErrorIs(t, b.Stop(ctx, h), domain.ErrInvalidState, "handle is released")
	assert.ErrorIs(t, b.Play(ctx, h), domain.ErrInvalidState)

	_, ok := <-b.Subscribe(h)
	assert.False(t, ok)
}

func TestBackend_SeekClamps(t *testing.T) {
	b, fake := newTestBackend(t, true)
	ctx := context.Background()

	h, err := b.Load(ctx, domain.Media{Path: tempFile(t, "song.mkv")})
	require.NoError(t, err)
	require.NoError(t, b.Play(ctx, h))

	tests := []struct {
		name     string
		position float64
		offset   float64
		expected float64
	}{
		{name: "Forward inside", position: 30, offset: 10, expected: 40},
		{name: "Forward past end", position: 170, offset: 30, expected: 179},
		{name: "Backward before start", position: 5, offset: -10, expected: 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fake.setProp("time-pos", tt.position)
			got, err := b.Seek(ctx, h, tt.offset)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got)

			pos, err := b.Position(ctx, h)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, pos)
		})
	}
}

func TestBackend_StaleEndFileIgnored(t *testing.T) {
	for _, withIDs := range []bool{false, true} {
		b, fake := newTestBackend(t, withIDs)
		ctx := context.Background()

		first, err := b.Load(ctx, domain.Media{Path: tempFile(t, "transition.png")})
		require.NoError(t, err)
		require.NoError(t, b.Play(ctx, first))
		expectEvent(t, b.Subscribe(first), domain.MediaStarted)
		firstEntry := fake.lastEntry()
		require.NoError(t, b.Stop(ctx, first))

		second, err := b.Load(ctx, domain.Media{Path: tempFile(t, "song.mkv")})
		require.NoError(t, err)
		events := b.Subscribe(second)
		require.NoError(t, b.Play(ctx, second))
		expectEvent(t, events, domain.MediaStarted)

		// a late end of the first file must not end the second
		fake.endFile(firstEntry, "eof", "")
		expectNoEvent(t, events)

		fake.endFile(fake.lastEntry(), "eof", "")
		expectEvent(t, events, domain.MediaEndReached)
	}
}

func TestBackend_FileError(t *testing.T) {
	b, fake := newTestBackend(t, true)
	ctx := context.Background()

	h, err := b.Load(ctx, domain.Media{Path: tempFile(t, "broken.mkv")})
	require.NoError(t, err)
	events := b.Subscribe(h)
	require.NoError(t, b.Play(ctx, h))
	expectEvent(t, events, domain.MediaStarted)

	fake.endFile(fake.lastEntry(), "error", "unrecognized file format")
	ev := expectEvent(t, events, domain.MediaError)
	assert.Equal(t, "unrecognized file format", ev.Detail)
}

func TestBackend_Disconnect(t *testing.T) {
	b, fake := newTestBackend(t, true)
	ctx := context.Background()

	h, err := b.Load(ctx, domain.Media{Path: tempFile(t, "song.mkv")})
	require.NoError(t, err)
	events := b.Subscribe(h)
	require.NoError(t, b.Play(ctx, h))
	expectEvent(t, events, domain.MediaStarted)

	fake.conn.Close()
	ev := expectEvent(t, events, domain.MediaError)
	assert.Equal(t, "mpv exited", ev.Detail)
}

func TestBackend_StartupOptions(t *testing.T) {
	b := NewBackend(zap.NewNop(), Options{RuntimeDir: t.TempDir()})

	require.NoError(t, b.SetFullscreen(true))
	require.NoError(t, b.ApplyStartupOptions(domain.StartupOptions{
		Args:         []string{"--vo=gpu"},
		MediaOptions: []string{"--sub-ass-override=no", "mute"},
	}))

	args := b.commandLine()
	assert.Contains(t, args, "--fullscreen")
	assert.Contains(t, args, "--vo=gpu")
	assert.Contains(t, args, "--idle=yes")
	assert.Contains(t, args, "--input-ipc-server="+b.socketPath)
	assert.Equal(t, map[string]string{"sub-ass-override": "no", "mute": "yes"}, b.fileOptions)

	client, server := net.Pipe()
	go newFakeMpv(server, true).serve()
	b.connect = func(ctx context.Context) (net.Conn, error) { return client, nil }
	require.NoError(t, b.Open(context.Background()))
	defer b.Close(context.Background())

	assert.ErrorIs(t, b.SetFullscreen(false), domain.ErrInvalidState)
	assert.ErrorIs(t, b.ApplyStartupOptions(domain.StartupOptions{}), domain.ErrInvalidState)

	version, err := b.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "0.38.0", version)
}
