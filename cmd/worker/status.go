package worker

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jonesrussell/marketplace/internal/queue"
)

const deadLetterPreview = 20

type depthReader interface {
	Depth(ctx context.Context) (int64, error)
}

type pendingReader interface {
	Pending(ctx context.Context) (int64, error)
}

type retryReader interface {
	DelayedCount(ctx context.Context) (int64, error)
	DeadLetters(ctx context.Context, count int64) ([]queue.Message, error)
}

// queueStatus reports stream depth, pending and delayed counts, and the
// oldest dead-lettered tasks.
func queueStatus(pending pendingReader, retries retryReader, depth depthReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()

		streamLen, err := depth.Depth(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
		inFlight, err := pending.Pending(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
		delayed, err := retries.DelayedCount(ctx)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}
		dead, err := retries.DeadLetters(ctx, deadLetterPreview)
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "queue unavailable"})
			return
		}

		tasks := make([]gin.H, 0, len(dead))
		for _, msg := range dead {
			tasks = append(tasks, gin.H{
				"id":         msg.ID,
				"kind":       msg.Task.Kind,
				"attempt":    msg.Task.Attempt,
				"last_error": msg.Task.LastError,
			})
		}

		c.JSON(http.StatusOK, gin.H{
			"depth":        streamLen,
			"pending":      inFlight,
			"delayed":      delayed,
			"dead_letters": tasks,
		})
	}
}
