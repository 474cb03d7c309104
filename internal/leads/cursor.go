package leads

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// PageSize is the number of leads returned per page.
const PageSize = 10

// cursorPosition identifies the last lead of a page in (createdAt desc, id desc) order.
type cursorPosition struct {
	CreatedAt time.Time `json:"t"`
	ID        string    `json:"id"`
}

func encodeCursor(lead *Lead) string {
	raw, _ := json.Marshal(cursorPosition{CreatedAt: lead.CreatedAt.UTC(), ID: lead.ID})
	return base64.RawURLEncoding.EncodeToString(raw)
}

func decodeCursor(cursor string) (*cursorPosition, error) {
	cursor = strings.TrimSpace(cursor)
	if cursor == "" {
		return nil, nil
	}
	raw, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	var pos cursorPosition
	if err := json.Unmarshal(raw, &pos); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCursor, err)
	}
	if pos.ID == "" || pos.CreatedAt.IsZero() {
		return nil, ErrInvalidCursor
	}
	return &pos, nil
}

// before reports whether lead sorts strictly after the cursor position.
func (p *cursorPosition) before(lead *Lead) bool {
	if lead.CreatedAt.Equal(p.CreatedAt) {
		return lead.ID < p.ID
	}
	return lead.CreatedAt.Before(p.CreatedAt)
}

// newestFirst orders leads by createdAt desc, id desc.
func newestFirst(a, b *Lead) int {
	if !a.CreatedAt.Equal(b.CreatedAt) {
		if a.CreatedAt.After(b.CreatedAt) {
			return -1
		}
		return 1
	}
	return strings.Compare(b.ID, a.ID)
}

// buildPage trims a result fetched with PageSize+1 rows and sets the next cursor.
func buildPage(rows []*Lead) *Page {
	page := &Page{Leads: rows}
	if len(rows) > PageSize {
		page.Leads = rows[:PageSize]
		page.NextCursor = encodeCursor(page.Leads[PageSize-1])
	}
	if page.Leads == nil {
		page.Leads = []*Lead{}
	}
	return page
}
