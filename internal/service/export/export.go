// Package export 将筛选出的对话记录导出为 zstd 压缩的 JSON Lines 文件
package export

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"
	log "github.com/sirupsen/logrus"

	"github.com/ashwinyue/convlog/internal/model"
	"github.com/ashwinyue/convlog/internal/repository"
	"github.com/ashwinyue/convlog/internal/service/conversation"
	"github.com/ashwinyue/convlog/internal/service/storage"
)

// ContentType 导出文件的内容类型
const ContentType = "application/zstd"

const defaultPageSize = 500

// Result 导出结果
type Result struct {
	Path  string `json:"path"`
	URL   string `json:"url"`
	Count int64  `json:"count"`
	Bytes int64  `json:"bytes"`
}

// Service 导出服务
type Service struct {
	store    repository.ConversationStore
	storage  storage.Storage
	pageSize int
	now      func() time.Time
}

// NewService 创建导出服务
func NewService(store repository.ConversationStore, st storage.Storage) *Service {
	return &Service{
		store:    store,
		storage:  st,
		pageSize: defaultPageSize,
		now:      time.Now,
	}
}

// Export 导出满足条件的全部记录，顺序与查询一致（created_at DESC, id DESC）
// 空条件表示导出全部，分页参数被忽略
// 压缩数据经 io.Pipe 边生成边写入存储
func (s *Service) Export(ctx context.Context, filter model.ConversationFilter) (*Result, error) {
	if filter.StartTime < 0 || filter.EndTime < 0 {
		return nil, fmt.Errorf("%w: start_time and end_time must not be negative", conversation.ErrInvalidFilter)
	}
	filter.Page, filter.PageSize = 0, 0

	pr, pw := io.Pipe()
	out := &countingWriter{w: pw}
	done := make(chan error, 1)
	var count int64

	go func() {
		n, err := s.produce(ctx, &filter, out)
		count = n
		pw.CloseWithError(err)
		done <- err
	}()

	name := fmt.Sprintf("conversations/%s-%s.jsonl.zst",
		s.now().UTC().Format("20060102-150405"), uuid.New().String()[:8])
	path, saveErr := s.storage.Save(ctx, &storage.SaveRequest{
		Name:        name,
		ContentType: ContentType,
		Size:        -1,
		Reader:      pr,
	})
	// 存储提前返回时解除生产者的阻塞
	pr.CloseWithError(io.ErrClosedPipe)
	produceErr := <-done

	// 写管道失败说明存储端已停止读取，此时以存储错误为准
	if saveErr != nil && (produceErr == nil || out.err != nil) {
		return nil, fmt.Errorf("failed to save export: %w", saveErr)
	}
	if produceErr != nil {
		if saveErr == nil {
			_ = s.storage.Delete(ctx, path)
		}
		return nil, produceErr
	}

	log.WithFields(log.Fields{
		"path":  path,
		"count": count,
		"bytes": out.n,
	}).Info("Conversations exported")

	return &Result{Path: path, URL: s.storage.GetURL(path), Count: count, Bytes: out.n}, nil
}

// produce 将记录编码为 JSON Lines 并经 zstd 压缩写入 w
func (s *Service) produce(ctx context.Context, filter *model.ConversationFilter, w io.Writer) (int64, error) {
	enc, err := zstd.NewWriter(w)
	if err != nil {
		return 0, fmt.Errorf("failed to create zstd writer: %w", err)
	}

	count, err := s.writeAll(ctx, filter, enc)
	if err != nil {
		enc.Close()
		return count, err
	}
	if err := enc.Close(); err != nil {
		return count, fmt.Errorf("failed to flush export: %w", err)
	}
	return count, nil
}

// countingWriter 统计写出的压缩字节数，并记住第一次写失败
type countingWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (c *countingWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	c.n += int64(n)
	if err != nil && c.err == nil {
		c.err = err
	}
	return n, err
}

func (s *Service) writeAll(ctx context.Context, filter *model.ConversationFilter, w io.Writer) (int64, error) {
	encoder := json.NewEncoder(w)
	var written int64
	for offset := 0; ; offset += s.pageSize {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		items, total, err := s.store.List(ctx, filter, offset, s.pageSize)
		if err != nil {
			return written, fmt.Errorf("failed to list conversations for export: %w", err)
		}
		for _, item := range items {
			if err := encoder.Encode(item); err != nil {
				return written, fmt.Errorf("failed to encode conversation %d: %w", item.ID, err)
			}
			written++
		}
		if len(items) < s.pageSize || int64(offset+len(items)) >= total {
			return written, nil
		}
	}
}

// Open 打开导出文件并返回解压后的内容
func (s *Service) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	rc, err := s.storage.Get(ctx, path)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(rc)
	if err != nil {
		rc.Close()
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	return &decodedFile{dec: dec, src: rc}, nil
}

type decodedFile struct {
	dec *zstd.Decoder
	src io.Closer
}

func (f *decodedFile) Read(p []byte) (int, error) {
	return f.dec.Read(p)
}

func (f *decodedFile) Close() error {
	f.dec.Close()
	return f.src.Close()
}
