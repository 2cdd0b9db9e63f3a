package server

import (
	"github.com/HendryAvila/ctcoach/internal/pipeline"
	"github.com/HendryAvila/ctcoach/internal/resources"
	"go.uber.org/zap"
)

// methodResourceUpdated is the MCP notification for a changed resource.
const methodResourceUpdated = "notifications/resources/updated"

// notificationSender is the slice of *server.MCPServer the notifier needs.
type notificationSender interface {
	SendNotificationToAllClients(method string, params map[string]any)
}

// notifier forwards session events to connected clients as
// resource-updated notifications, so hosts that subscribed to the status
// resource refresh when feedback lands in the background.
type notifier struct {
	out notificationSender
	log *zap.Logger
}

func newNotifier(out notificationSender, log *zap.Logger) *notifier {
	return &notifier{out: out, log: log.Named("notify")}
}

// PhaseChanged implements session.Observer.
func (n *notifier) PhaseChanged(from, to pipeline.Phase) {
	n.log.Info("phase changed",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	n.updated(resources.StatusURI)
	if from == pipeline.PhaseUpload || to == pipeline.PhaseUpload {
		n.updated(resources.DashboardURI)
	}
}

// FeedbackReady implements session.Observer.
func (n *notifier) FeedbackReady(phase pipeline.Phase, rec pipeline.FeedbackRecord) {
	n.log.Info("feedback ready",
		zap.String("phase", string(phase)),
		zap.String("status", string(rec.Status)),
		zap.Bool("failed", rec.Failed))
	n.updated(resources.StatusURI)
}

func (n *notifier) updated(uri string) {
	n.out.SendNotificationToAllClients(methodResourceUpdated, map[string]any{"uri": uri})
}
