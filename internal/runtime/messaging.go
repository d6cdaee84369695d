package runtime

import (
	"context"
	"fmt"

	"github.com/Harshitk-cp/bdi/internal/execution"
	"github.com/Harshitk-cp/bdi/internal/fuzzy"
	"github.com/Harshitk-cp/bdi/internal/term"
	"github.com/Harshitk-cp/bdi/internal/trigger"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// SendAction is the path of the messaging action.
const SendAction term.Path = "message/send"

// sendAction delivers "message/send(To, Payload)" to the agent with id To
// as the goal "message(From, Payload)" of its next cycle. Unknown
// receivers fail the step.
func (r *Runner) sendAction() execution.Action {
	return execution.Action{
		Name:             SendAction,
		MinimalArguments: 2,
		Execute: func(_ context.Context, _ bool, c *execution.Context, args []term.Term) ([]term.Term, []fuzzy.Value, error) {
			to, ok := args[0].Raw().(string)
			if !ok {
				return nil, nil, fmt.Errorf("%w: receiver %s is not an agent id", execution.ErrIllegalState, args[0])
			}
			id, err := uuid.Parse(to)
			if err != nil {
				return nil, nil, fmt.Errorf("%w: receiver %q: %w", execution.ErrIllegalState, to, err)
			}
			from := c.Agent().ID()
			msg := term.NewLiteral("message", false, []term.Term{term.NewConstant(from), args[1]}, nil)

			if err := r.Inject(id, trigger.AddGoal, msg); err != nil {
				messagesSent.WithLabelValues("undelivered").Inc()
				r.logger.Debug("message not delivered",
					zap.String("from", from),
					zap.String("to", to),
					zap.Error(err),
				)
				return nil, []fuzzy.Value{fuzzy.False()}, nil
			}
			messagesSent.WithLabelValues("delivered").Inc()
			return nil, []fuzzy.Value{fuzzy.True()}, nil
		},
	}
}
