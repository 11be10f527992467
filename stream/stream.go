// Package stream 实现流式响应的增量解码。
// 解码器对响应体做单遍扫描：按行切分事件帧（帧可能跨越多次读取，
// 绝不假设一次读取恰好是一帧），data: 前缀的行才是候选帧，
// 哨兵载荷或家族自身的结束事件终止流。
//
// 解码结果是拉取式的惰性序列：消费者通过 Recv 控制节奏，随时 Close
// 即放弃消费并关闭底层传输读取，不会继续拉完剩余数据。
package stream

import (
	"bufio"
	"io"
	"strings"

	"go.uber.org/zap"

	"github.com/BaSui01/llmgate/types"
)

// dataPrefix 是事件流帧的数据前缀。
const dataPrefix = "data:"

// ExtractFunc 把单个帧载荷翻译为归一化增量。
// ok=false 表示丢弃该帧；done=true 表示该帧是流结束信号。
type ExtractFunc func(frame []byte) (chunk types.StreamChunk, ok bool, done bool)

// Stream 是一次流式补全的惰性 chunk 序列。
// 前向只读、不可重放；重新发起调用才能得到新的流。
// 单个 Stream 不支持并发 Recv。
type Stream struct {
	body     io.ReadCloser
	reader   *bufio.Reader
	extract  ExtractFunc
	sentinel string
	logger   *zap.Logger
	onDrop   func()

	done    bool
	closed  bool
	dropped int
}

// Option 配置 Stream。
type Option func(*Stream)

// WithLogger 设置日志器（默认 Nop）。
func WithLogger(logger *zap.Logger) Option {
	return func(s *Stream) { s.logger = logger }
}

// WithDropHook 注册帧丢弃回调，用于指标上报。
func WithDropHook(fn func()) Option {
	return func(s *Stream) { s.onDrop = fn }
}

// New 在响应体上创建解码流。sentinel 为空表示该流没有哨兵帧，
// 以 EOF 或 extract 的 done 信号结束。
func New(body io.ReadCloser, sentinel string, extract ExtractFunc, opts ...Option) *Stream {
	s := &Stream{
		body:     body,
		reader:   bufio.NewReader(body),
		extract:  extract,
		sentinel: sentinel,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Recv 返回下一个 chunk。流结束后返回 io.EOF；传输中断返回 NETWORK
// 错误。无法解析的帧被静默丢弃并继续（单个坏帧不终止流），丢弃次数
// 通过 Dropped 暴露。
func (s *Stream) Recv() (types.StreamChunk, error) {
	if s.done || s.closed {
		return types.StreamChunk{}, io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			// 尾部可能残留一个没有换行的完整帧
			if err == io.EOF {
				if chunk, ok := s.handleLine(line); ok {
					s.done = true
					return chunk, nil
				}
				s.done = true
				return types.StreamChunk{}, io.EOF
			}
			if s.closed {
				return types.StreamChunk{}, io.EOF
			}
			s.done = true
			return types.StreamChunk{}, types.NewError(types.ErrNetwork, "stream read failed").WithCause(err).WithRetryable(true)
		}

		if chunk, ok := s.handleLine(line); ok {
			return chunk, nil
		}
		if s.done {
			return types.StreamChunk{}, io.EOF
		}
	}
}

// handleLine 处理一个完整行，返回 (chunk, true) 表示产出一个增量。
// 流结束时设置 s.done。
func (s *Stream) handleLine(line string) (types.StreamChunk, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "event:") || strings.HasPrefix(line, ":") {
		return types.StreamChunk{}, false
	}
	if !strings.HasPrefix(line, dataPrefix) {
		return types.StreamChunk{}, false
	}

	payload := strings.TrimSpace(strings.TrimPrefix(line, dataPrefix))
	if payload == "" {
		return types.StreamChunk{}, false
	}
	if s.sentinel != "" && payload == s.sentinel {
		s.done = true
		return types.StreamChunk{}, false
	}

	chunk, ok, done := s.extract([]byte(payload))
	if done {
		s.done = true
	}
	if !ok {
		if !done {
			s.drop(payload)
		}
		return types.StreamChunk{}, false
	}
	return chunk, true
}

func (s *Stream) drop(payload string) {
	s.dropped++
	s.logger.Debug("dropping undecodable stream frame",
		zap.Int("dropped_total", s.dropped),
		zap.Int("frame_bytes", len(payload)))
	if s.onDrop != nil {
		s.onDrop()
	}
}

// Dropped 返回本流已丢弃的帧数（仅用于观测，不影响外部行为）。
func (s *Stream) Dropped() int { return s.dropped }

// Close 放弃消费并关闭底层传输读取。可重复调用。
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.body.Close()
}
