package recorder

import "context"

// Caller 发起请求的用户信息
type Caller struct {
	UserID    int
	Username  string
	TokenID   int
	TokenName string
	ChannelID int
	Group     string
	IP        string
	RecordIP  bool // 用户开启了 IP 记录
}

type callerKey struct{}

// WithCaller 将调用方信息放入 ctx
func WithCaller(ctx context.Context, c Caller) context.Context {
	return context.WithValue(ctx, callerKey{}, c)
}

// CallerFrom 从 ctx 取出调用方信息，没有时返回零值
func CallerFrom(ctx context.Context) Caller {
	if ctx == nil {
		return Caller{}
	}
	c, _ := ctx.Value(callerKey{}).(Caller)
	return c
}
