package directory

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/go-ldap/ldap/v3"

	"dirsync/internal/directorysync/models"
	"dirsync/pkg/platform/sentinel"
)

// Session is one bound LDAP connection. It is not safe for concurrent use.
type Session struct {
	conn         conn
	baseDN       string
	userFilter   string
	pageSize     uint32
	searchFields []string
	attributes   []string
	logger       *slog.Logger
}

// SearchAll runs a paged subtree search and hands each page to fn as it arrives.
// An error from fn stops the search and abandons the server-side cursor.
func (s *Session) SearchAll(ctx context.Context, fn func(page []*models.DirectoryRecord) error) error {
	paging := ldap.NewControlPaging(s.pageSize)
	req := s.searchRequest(s.userFilter, 0, paging)

	for page := 1; ; page++ {
		if err := ctx.Err(); err != nil {
			s.abandon(req, paging)
			return err
		}
		res, err := s.conn.Search(req)
		if err != nil {
			return fmt.Errorf("search directory page %d: %w", page, err)
		}

		records := make([]*models.DirectoryRecord, 0, len(res.Entries))
		for _, entry := range res.Entries {
			records = append(records, toRecord(entry))
		}
		cookie := nextCookie(res)
		paging.SetCookie(cookie)
		if err := fn(records); err != nil {
			s.abandon(req, paging)
			return err
		}
		if len(cookie) == 0 {
			return nil
		}
	}
}

// GetByID looks up the entry whose attribute holds the bytes encoded in id.
func (s *Session) GetByID(_ context.Context, id, attribute string) (*models.DirectoryRecord, error) {
	filter, err := idFilter(s.userFilter, attribute, id)
	if err != nil {
		return nil, err
	}
	return s.searchOne(filter)
}

// GetByUsername looks up the entry whose search fields match username.
func (s *Session) GetByUsername(_ context.Context, username string) (*models.DirectoryRecord, error) {
	if len(s.searchFields) == 0 {
		return nil, errors.New("no directory search fields configured")
	}
	return s.searchOne(usernameFilter(s.userFilter, s.searchFields, username))
}

func (s *Session) Close() error {
	return s.conn.Close()
}

func (s *Session) searchOne(filter string) (*models.DirectoryRecord, error) {
	res, err := s.conn.Search(s.searchRequest(filter, 1))
	switch {
	case err == nil:
	case ldap.IsErrorWithCode(err, ldap.LDAPResultSizeLimitExceeded) && res != nil && len(res.Entries) > 0:
		s.logger.Warn("directory lookup matched more than one entry, using the first",
			"filter", filter,
			"dn", res.Entries[0].DN,
		)
	case ldap.IsErrorWithCode(err, ldap.LDAPResultNoSuchObject):
		return nil, sentinel.ErrNotFound
	default:
		return nil, fmt.Errorf("search directory: %w", err)
	}
	if len(res.Entries) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return toRecord(res.Entries[0]), nil
}

func (s *Session) searchRequest(filter string, sizeLimit int, controls ...ldap.Control) *ldap.SearchRequest {
	return ldap.NewSearchRequest(
		s.baseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		sizeLimit,
		0,
		false,
		filter,
		s.attributes,
		controls,
	)
}

// abandon tells the server to drop the paged cursor by asking for a zero-size page.
func (s *Session) abandon(req *ldap.SearchRequest, paging *ldap.ControlPaging) {
	if len(paging.Cookie) == 0 {
		return
	}
	paging.PagingSize = 0
	if _, err := s.conn.Search(req); err != nil {
		s.logger.Debug("failed to abandon paged search", "error", err)
	}
}

func nextCookie(res *ldap.SearchResult) []byte {
	ctrl, ok := ldap.FindControl(res.Controls, ldap.ControlTypePaging).(*ldap.ControlPaging)
	if !ok || ctrl == nil {
		return nil
	}
	return ctrl.Cookie
}

// idFilter matches the raw bytes of a hex identity, escaping every byte.
func idFilter(userFilter, attribute, id string) (string, error) {
	raw, err := hex.DecodeString(id)
	if err != nil || len(raw) == 0 {
		return "", fmt.Errorf("invalid directory identity %q: %w", id, sentinel.ErrNotFound)
	}
	var b strings.Builder
	for _, c := range raw {
		fmt.Fprintf(&b, `\%02x`, c)
	}
	return fmt.Sprintf("(&%s(%s=%s))", userFilter, attribute, b.String()), nil
}

func usernameFilter(userFilter string, fields []string, username string) string {
	escaped := ldap.EscapeFilter(username)
	var b strings.Builder
	for _, field := range fields {
		fmt.Fprintf(&b, "(%s=%s)", field, escaped)
	}
	if len(fields) == 1 {
		return fmt.Sprintf("(&%s%s)", userFilter, b.String())
	}
	return fmt.Sprintf("(&%s(|%s))", userFilter, b.String())
}

func toRecord(entry *ldap.Entry) *models.DirectoryRecord {
	record := &models.DirectoryRecord{
		DN:         entry.DN,
		Attributes: make(map[string][]string, len(entry.Attributes)),
		Raw:        make(map[string][][]byte, len(entry.Attributes)),
	}
	for _, attr := range entry.Attributes {
		record.Attributes[attr.Name] = attr.Values
		record.Raw[attr.Name] = attr.ByteValues
	}
	return record
}
