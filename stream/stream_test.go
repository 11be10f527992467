package stream

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/BaSui01/llmgate/types"
)

// extractJSON 解析 {"delta":"..."} 形式的测试帧。
func extractJSON(frame []byte) (types.StreamChunk, bool, bool) {
	var payload struct {
		Delta string `json:"delta"`
		Stop  bool   `json:"stop"`
	}
	if err := json.Unmarshal(frame, &payload); err != nil {
		return types.StreamChunk{}, false, false
	}
	if payload.Stop {
		return types.StreamChunk{}, false, true
	}
	return types.StreamChunk{Delta: payload.Delta}, true, false
}

// chunkedReader 按预先切好的片段逐段返回，模拟帧跨越多次读取。
type chunkedReader struct {
	parts []string
	pos   int
}

func (r *chunkedReader) Read(p []byte) (int, error) {
	if r.pos >= len(r.parts) {
		return 0, io.EOF
	}
	n := copy(p, r.parts[r.pos])
	if n == len(r.parts[r.pos]) {
		r.pos++
	} else {
		r.parts[r.pos] = r.parts[r.pos][n:]
	}
	return n, nil
}

func (r *chunkedReader) Close() error { return nil }

func body(s string) io.ReadCloser {
	return io.NopCloser(strings.NewReader(s))
}

func collect(t *testing.T, s *Stream) []string {
	t.Helper()
	var deltas []string
	for {
		chunk, err := s.Recv()
		if err == io.EOF {
			return deltas
		}
		require.NoError(t, err)
		deltas = append(deltas, chunk.Delta)
	}
}

func TestStream_SentinelTermination(t *testing.T) {
	raw := "data: {\"delta\":\"hel\"}\n\n" +
		"data: {\"delta\":\"lo\"}\n\n" +
		"data: [DONE]\n\n" +
		"data: {\"delta\":\"after sentinel, never delivered\"}\n"

	s := New(body(raw), "[DONE]", extractJSON)
	assert.Equal(t, []string{"hel", "lo"}, collect(t, s))

	// 结束后的 Recv 稳定返回 EOF
	_, err := s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStream_ExtractorDoneTermination(t *testing.T) {
	raw := "data: {\"delta\":\"a\"}\n" +
		"data: {\"stop\":true}\n" +
		"data: {\"delta\":\"b\"}\n"

	s := New(body(raw), "", extractJSON)
	assert.Equal(t, []string{"a"}, collect(t, s))
}

func TestStream_EOFTermination(t *testing.T) {
	// 哨兵为空的流（gemini 形态）以 EOF 收尾
	raw := "data: {\"delta\":\"x\"}\ndata: {\"delta\":\"y\"}\n"
	s := New(body(raw), "", extractJSON)
	assert.Equal(t, []string{"x", "y"}, collect(t, s))
}

func TestStream_TrailingFrameWithoutNewline(t *testing.T) {
	raw := "data: {\"delta\":\"first\"}\ndata: {\"delta\":\"last\"}"
	s := New(body(raw), "", extractJSON)
	assert.Equal(t, []string{"first", "last"}, collect(t, s))
}

func TestStream_MalformedFramesDroppedSilently(t *testing.T) {
	raw := "data: {\"delta\":\"ok1\"}\n" +
		"data: ]not json[\n" +
		"data: {\"delta\":\"ok2\"}\n" +
		"data: also broken\n" +
		"data: [DONE]\n"

	s := New(body(raw), "[DONE]", extractJSON)
	assert.Equal(t, []string{"ok1", "ok2"}, collect(t, s))
	assert.Equal(t, 2, s.Dropped())
}

func TestStream_DropHookFires(t *testing.T) {
	raw := "data: broken\ndata: [DONE]\n"
	var hooked int
	s := New(body(raw), "[DONE]", extractJSON, WithDropHook(func() { hooked++ }))
	collect(t, s)
	assert.Equal(t, 1, hooked)
}

func TestStream_NonDataLinesIgnored(t *testing.T) {
	raw := "event: message_start\n" +
		": keepalive comment\n" +
		"\n" +
		"id: 42\n" +
		"data: {\"delta\":\"only\"}\n" +
		"data: [DONE]\n"

	s := New(body(raw), "[DONE]", extractJSON)
	assert.Equal(t, []string{"only"}, collect(t, s))
	// 非 data 行不算坏帧
	assert.Zero(t, s.Dropped())
}

type errReader struct{ closed bool }

func (r *errReader) Read(p []byte) (int, error) { return 0, errors.New("connection reset") }
func (r *errReader) Close() error               { r.closed = true; return nil }

func TestStream_ReadErrorBecomesNetworkError(t *testing.T) {
	s := New(&errReader{}, "[DONE]", extractJSON)
	_, err := s.Recv()
	require.Error(t, err)
	assert.Equal(t, types.ErrNetwork, types.GetErrorCode(err))
	assert.True(t, types.IsRetryable(err))

	// 出错后流视为结束
	_, err = s.Recv()
	assert.Equal(t, io.EOF, err)
}

func TestStream_CloseIsIdempotentAndAbandons(t *testing.T) {
	r := &errReader{}
	s := New(r, "[DONE]", extractJSON)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())
	assert.True(t, r.closed)

	// 关闭后 Recv 返回 EOF 而不是读错误
	_, err := s.Recv()
	assert.Equal(t, io.EOF, err)
}

// 属性：解码结果与帧在传输层的切分方式无关。
func TestStream_FragmentationInvariance(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 20).Draw(rt, "frames")
		var raw strings.Builder
		want := make([]string, 0, n)
		for i := 0; i < n; i++ {
			delta := fmt.Sprintf("d%d", i)
			want = append(want, delta)
			raw.WriteString(fmt.Sprintf("data: {\"delta\":%q}\n\n", delta))
		}
		raw.WriteString("data: [DONE]\n")
		full := raw.String()

		// 随机切分点
		var parts []string
		rest := full
		for len(rest) > 0 {
			cut := rapid.IntRange(1, len(rest)).Draw(rt, "cut")
			parts = append(parts, rest[:cut])
			rest = rest[cut:]
		}

		s := New(&chunkedReader{parts: parts}, "[DONE]", extractJSON)
		var got []string
		for {
			chunk, err := s.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
			got = append(got, chunk.Delta)
		}
		if len(got) != len(want) {
			rt.Fatalf("got %d chunks, want %d", len(got), len(want))
		}
		for i := range want {
			if got[i] != want[i] {
				rt.Fatalf("chunk %d: got %q want %q", i, got[i], want[i])
			}
		}
	})
}

// 属性：N 个合法帧夹杂任意多坏帧，产出恰好 N 个 chunk，
// 丢弃计数等于坏帧数。
func TestStream_MalformedAmongValid(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		valid := rapid.IntRange(0, 10).Draw(rt, "valid")
		bad := rapid.IntRange(0, 10).Draw(rt, "bad")

		var raw strings.Builder
		v, b := valid, bad
		for v > 0 || b > 0 {
			if v > 0 && (b == 0 || rapid.Bool().Draw(rt, "pickValid")) {
				raw.WriteString(fmt.Sprintf("data: {\"delta\":\"v%d\"}\n", v))
				v--
			} else {
				raw.WriteString("data: {malformed\n")
				b--
			}
		}
		raw.WriteString("data: [DONE]\n")

		s := New(body(raw.String()), "[DONE]", extractJSON)
		count := 0
		for {
			_, err := s.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				rt.Fatalf("unexpected error: %v", err)
			}
			count++
		}
		if count != valid {
			rt.Fatalf("got %d chunks, want %d", count, valid)
		}
		if s.Dropped() != bad {
			rt.Fatalf("dropped %d, want %d", s.Dropped(), bad)
		}
	})
}
