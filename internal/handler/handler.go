package handler

import (
	"github.com/ashwinyue/convlog/internal/service"
)

// Handlers 处理器集合
type Handlers struct {
	Conversation *ConversationHandler
	Setting      *SettingHandler
	Maintenance  *MaintenanceHandler
	Export       *ExportHandler
}

// NewHandlers 创建所有处理器
func NewHandlers(svc *service.Services) *Handlers {
	return &Handlers{
		Conversation: NewConversationHandler(svc.Conversation),
		Setting:      NewSettingHandler(svc.Gate),
		Maintenance:  NewMaintenanceHandler(svc.Maintenance),
		Export:       NewExportHandler(svc.Export),
	}
}
