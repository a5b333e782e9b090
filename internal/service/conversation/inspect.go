package conversation

import (
	"encoding/json"
	"strings"

	"github.com/kaptinlin/jsonrepair"
	"github.com/valyala/fastjson"
)

// MessagesView request_messages 的结构化视图
// Raw 始终是原始内容，解析失败不影响详情返回
type MessagesView struct {
	Raw      string          `json:"raw"`
	Valid    bool            `json:"valid"`
	Repaired bool            `json:"repaired"`
	Count    int             `json:"count"`
	Roles    []string        `json:"roles,omitempty"`
	Messages json.RawMessage `json:"messages,omitempty"`
	Error    string          `json:"error,omitempty"`
}

var inspectParsers fastjson.ParserPool

// InspectMessages 尽力解析请求消息
// 合法 JSON 直接使用；否则尝试 jsonrepair 修复；仍失败则只返回原文和错误信息
func InspectMessages(raw string) *MessagesView {
	view := &MessagesView{Raw: raw}
	if strings.TrimSpace(raw) == "" {
		view.Error = "empty payload"
		return view
	}

	p := inspectParsers.Get()
	defer inspectParsers.Put(p)

	v, err := p.Parse(raw)
	if err != nil {
		repaired, repairErr := jsonrepair.JSONRepair(raw)
		if repairErr != nil {
			view.Error = err.Error()
			return view
		}
		v, err = p.Parse(repaired)
		if err != nil {
			view.Error = err.Error()
			return view
		}
		view.Repaired = true
	} else {
		view.Valid = true
	}

	view.Messages = json.RawMessage(v.MarshalTo(nil))
	switch v.Type() {
	case fastjson.TypeArray:
		arr, _ := v.Array()
		view.Count = len(arr)
		view.Roles = collectRoles(arr)
	case fastjson.TypeObject:
		// {"messages": [...]} 形式
		if arr := v.GetArray("messages"); arr != nil {
			view.Count = len(arr)
			view.Roles = collectRoles(arr)
		} else {
			view.Count = 1
			view.Roles = collectRoles([]*fastjson.Value{v})
		}
	default:
		view.Count = 1
	}
	return view
}

// collectRoles 只收集对象元素上非空的 role
func collectRoles(msgs []*fastjson.Value) []string {
	var roles []string
	for _, msg := range msgs {
		if msg == nil || msg.Type() != fastjson.TypeObject {
			continue
		}
		if role := string(msg.GetStringBytes("role")); role != "" {
			roles = append(roles, role)
		}
	}
	return roles
}
