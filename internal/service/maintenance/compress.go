package maintenance

import (
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/ashwinyue/convlog/internal/model"
)

// Codec 归档内容的 zstd 编解码器，EncodeAll/DecodeAll 可并发使用
type Codec struct {
	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// NewCodec 创建编解码器
func NewCodec() (*Codec, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &Codec{encoder: enc, decoder: dec}, nil
}

// Close 释放编解码器资源
func (c *Codec) Close() {
	c.encoder.Close()
	c.decoder.Close()
}

// Compress 压缩文本，空文本返回 nil
func (c *Codec) Compress(s string) []byte {
	if s == "" {
		return nil
	}
	return c.encoder.EncodeAll([]byte(s), nil)
}

// Decompress 解压文本
func (c *Codec) Decompress(b []byte) (string, error) {
	if len(b) == 0 {
		return "", nil
	}
	out, err := c.decoder.DecodeAll(b, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decompress archive payload: %w", err)
	}
	return string(out), nil
}

// ToArchive 将对话转换为归档记录
func (c *Codec) ToArchive(conv *model.Conversation, archivedAt time.Time) *model.ConversationArchive {
	req := c.Compress(conv.RequestMessages)
	resp := c.Compress(conv.ResponseContent)

	ratio := 0.0
	if compressed := len(req) + len(resp); compressed > 0 {
		ratio = float64(len(conv.RequestMessages)+len(conv.ResponseContent)) / float64(compressed)
	}

	return &model.ConversationArchive{
		OriginalID:         conv.ID,
		UserID:             conv.UserID,
		Username:           conv.Username,
		ModelName:          conv.ModelName,
		TokenID:            conv.TokenID,
		TokenName:          conv.TokenName,
		ChannelID:          conv.ChannelID,
		RequestMessagesZst: req,
		ResponseContentZst: resp,
		PromptTokens:       conv.PromptTokens,
		CompletionTokens:   conv.CompletionTokens,
		TotalTokens:        conv.TotalTokens,
		IsStream:           conv.IsStream,
		CreatedAt:          conv.CreatedAt,
		UseTime:            conv.UseTime,
		IP:                 conv.IP,
		Group:              conv.Group,
		ArchivedAt:         archivedAt.Unix(),
		CompressionRatio:   ratio,
	}
}

// ArchivedConversation 解压后的归档记录
type ArchivedConversation struct {
	*model.ConversationArchive
	RequestMessages string `json:"request_messages"`
	ResponseContent string `json:"response_content"`
}

// FromArchive 解压归档记录
func (c *Codec) FromArchive(a *model.ConversationArchive) (*ArchivedConversation, error) {
	req, err := c.Decompress(a.RequestMessagesZst)
	if err != nil {
		return nil, err
	}
	resp, err := c.Decompress(a.ResponseContentZst)
	if err != nil {
		return nil, err
	}
	return &ArchivedConversation{ConversationArchive: a, RequestMessages: req, ResponseContent: resp}, nil
}
