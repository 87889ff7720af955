package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/log"
	"github.com/robertobuso/pr-bills-tracker/internal/document"
	"github.com/robertobuso/pr-bills-tracker/internal/model"
	"github.com/robertobuso/pr-bills-tracker/internal/service"
)

// BillSearcher lists bills from the primary API
type BillSearcher interface {
	SearchBills(ctx context.Context, search service.BillSearch) (*model.BillPage, error)
}

// BillSessions opens and tracks bill detail sessions
type BillSessions interface {
	Open(ctx context.Context, billID string) (*service.Session, error)
	Close(billID string) bool
	ResolveDocument(ctx context.Context, billID, docURL string) (model.DocumentRef, error)
}

// ListBillsHandler proxies the bill search
func ListBillsHandler(searcher BillSearcher) fiber.Handler {
	return func(c *fiber.Ctx) error {
		page, err := searcher.SearchBills(c.UserContext(), service.BillSearch{
			Query:          c.Query("query"),
			Classification: c.Query("classification"),
			Page:           c.QueryInt("page", 1),
			PerPage:        c.QueryInt("per_page", 10),
		})
		if err != nil {
			return respondError(c, err)
		}
		if page.Results == nil {
			page.Results = []model.BillRecord{}
		}
		return c.JSON(page)
	}
}

// billID reads the :id parameter, which may be an escaped "ocd-bill/..." id
func billID(c *fiber.Ctx) string {
	id := c.Params("id")
	if unescaped, err := url.PathUnescape(id); err == nil {
		id = unescaped
	}
	return strings.TrimSpace(id)
}

// BillDetailHandler opens a bill detail session. JSON clients get the current
// state at once, or the completed state with ?wait=true. Clients accepting
// text/event-stream get a snapshot event followed by a single update event.
func BillDetailHandler(sessions BillSessions, updateTimeout time.Duration) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := billID(c)
		if id == "" {
			return badRequest(c, "bill id is required")
		}

		session, err := sessions.Open(c.UserContext(), id)
		if err != nil {
			return respondError(c, err)
		}

		if strings.Contains(c.Get(fiber.HeaderAccept), "text/event-stream") {
			return streamSession(c, session, updateTimeout)
		}

		if c.QueryBool("wait", false) {
			ctx, cancel := context.WithTimeout(c.UserContext(), updateTimeout)
			defer cancel()
			if detail, err := session.Wait(ctx); err == nil {
				return c.JSON(detail)
			}
		}
		return c.JSON(session.Current())
	}
}

func streamSession(c *fiber.Ctx, session *service.Session, updateTimeout time.Duration) error {
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	snapshot := session.Snapshot()
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		if err := writeEvent(w, "snapshot", snapshot); err != nil {
			return
		}

		timer := time.NewTimer(updateTimeout)
		defer timer.Stop()

		select {
		case <-session.Done():
			_ = writeEvent(w, "update", session.Current())
		case <-timer.C:
			log.Warnf("bill %s: no update within %s", session.BillID, updateTimeout)
			_ = writeEvent(w, "timeout", fiber.Map{"billId": session.BillID})
		}
	})
	return nil
}

func writeEvent(w *bufio.Writer, event string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	if _, err := w.WriteString("event: " + event + "\ndata: "); err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		return err
	}
	if _, err := w.WriteString("\n\n"); err != nil {
		return err
	}
	return w.Flush()
}

// CloseBillHandler discards a bill detail session
func CloseBillHandler(sessions BillSessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !sessions.Close(billID(c)) {
			return notFound(c, "no open session for bill")
		}
		return c.SendStatus(fiber.StatusNoContent)
	}
}

// ResolveBillDocumentHandler resolves a document against a bill's session
func ResolveBillDocumentHandler(sessions BillSessions) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var req documentRequest
		if err := c.BodyParser(&req); err != nil || strings.TrimSpace(req.DocumentURL) == "" {
			return badRequest(c, "documentUrl is required")
		}

		ref, err := sessions.ResolveDocument(c.UserContext(), billID(c), req.DocumentURL)
		if err != nil && !errors.Is(err, document.ErrUnsupportedType) {
			return respondError(c, err)
		}
		return c.JSON(ref)
	}
}
