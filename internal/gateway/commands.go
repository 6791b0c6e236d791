package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"time"

	"marketsimv1/internal/auth"
	"marketsimv1/internal/market"
	"marketsimv1/internal/model"
)

// commandTimeout bounds store I/O triggered by a single inbound command.
const commandTimeout = 5 * time.Second

// command is the inbound wire format. Auth carries the TOTP code for
// mutating commands when the admin guard is enabled.
type command struct {
	Type string `json:"type"`
	Auth string `json:"auth,omitempty"`

	ID        string           `json:"id,omitempty"`
	Active    *bool            `json:"active,omitempty"`
	Settings  *model.Settings  `json:"settings,omitempty"`
	Price     *float64         `json:"price,omitempty"`
	Spec      *model.StockSpec `json:"spec,omitempty"`
	Timeframe string           `json:"timeframe,omitempty"`
	Range     string           `json:"range,omitempty"`
	Limit     int              `json:"limit,omitempty"`
	Ms        int              `json:"ms,omitempty"`
}

// commandResult is sent back to the issuing client only.
type commandResult struct {
	Type  string `json:"type"`
	OK    bool   `json:"ok"`
	Code  string `json:"code,omitempty"`
	Error string `json:"error,omitempty"`
	Data  any    `json:"data,omitempty"`
}

// adminCommands mutate state and require a TOTP code when the guard is on.
var adminCommands = map[string]bool{
	"toggle-stock-updates":  true,
	"update-stock-settings": true,
	"set-manual-price":      true,
	"create-stock":          true,
	"delete-stock":          true,
	"set-update-frequency":  true,
	"start-simulation":      true,
	"stop-simulation":       true,
}

// dispatch routes one inbound message to its handler and replies to the
// issuing client. Broadcast side effects (stock-update etc.) flow
// through the publisher, not through here.
func (h *Hub) dispatch(c *Client, raw []byte) {
	var cmd command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		c.reply(commandResult{Type: "unknown", Code: "bad_request", Error: "malformed command: " + err.Error()})
		return
	}

	if adminCommands[cmd.Type] {
		if err := h.guard.Verify(cmd.Auth); err != nil {
			c.reply(commandResult{Type: cmd.Type, Code: "unauthorized", Error: err.Error()})
			return
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), commandTimeout)
	defer cancel()

	var data any
	var err error

	switch cmd.Type {
	case "toggle-stock-updates":
		if cmd.Active == nil {
			err = badField("active", "required")
			break
		}
		err = h.market.ToggleActive(ctx, cmd.ID, *cmd.Active)

	case "update-stock-settings":
		if cmd.Settings == nil {
			err = badField("settings", "required")
			break
		}
		err = h.market.UpdateSettings(ctx, cmd.ID, *cmd.Settings)

	case "set-manual-price":
		if cmd.Price == nil {
			err = badField("price", "required")
			break
		}
		err = h.market.SetManualPrice(ctx, cmd.ID, *cmd.Price)

	case "create-stock":
		if cmd.Spec == nil {
			err = badField("spec", "required")
			break
		}
		data, err = h.market.CreateStock(ctx, *cmd.Spec)

	case "delete-stock":
		err = h.market.DeleteStock(ctx, cmd.ID)

	case "set-update-frequency":
		err = h.sched.SetUpdateFrequency(time.Duration(cmd.Ms) * time.Millisecond)

	case "start-simulation":
		h.sched.Start(context.Background())

	case "stop-simulation":
		h.sched.Stop()

	case "get-candles":
		data, err = h.candles.Candles(ctx, cmd.ID, model.Timeframe(cmd.Timeframe), cmd.Limit)

	case "get-history":
		data, err = h.market.History(ctx, cmd.ID, market.TimeRange(cmd.Range), cmd.Limit)

	case "get-stocks":
		data = h.market.Snapshots()

	default:
		err = badField("type", "unknown command "+cmd.Type)
	}

	if err != nil {
		c.reply(commandResult{Type: cmd.Type, Code: errorCode(err), Error: err.Error()})
		return
	}
	c.reply(commandResult{Type: cmd.Type, OK: true, Data: data})
}

// reply queues a result envelope for this client only.
func (c *Client) reply(res commandResult) {
	data, err := json.Marshal(res)
	if err != nil {
		log.Printf("[gateway] marshal reply: %v", err)
		return
	}
	msg, _ := json.Marshal(envelope{Event: "command-result", Data: data, TS: time.Now().UTC()})
	select {
	case c.send <- msg:
	default:
	}
}

func badField(field, reason string) error {
	ve := &model.ValidationError{}
	ve.Add(field, reason)
	return ve
}

// errorCode maps the error taxonomy onto wire codes.
func errorCode(err error) string {
	switch {
	case model.IsValidation(err):
		return "validation"
	case errors.Is(err, model.ErrNotFound):
		return "not_found"
	case errors.Is(err, model.ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, auth.ErrUnauthorized):
		return "unauthorized"
	default:
		return "internal"
	}
}
