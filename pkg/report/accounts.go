package report

import (
	"fmt"
	"strings"

	"github.com/0xmhha/usage-report/pkg/identity"
)

// Accounts merges explicit API keys with the keys of emails resolved through
// the mapping. Unknown emails are logged along with similar known emails.
// When emails were given and nothing at all resolved, ErrNoAccounts is
// returned.
func (r *Reporter) Accounts(m identity.Mapping, apiKeys, emails []string) ([]string, error) {
	keys := dedupe(apiKeys)
	if len(emails) == 0 {
		return keys, nil
	}

	r.logger.Info("converting emails to API keys", "emails", len(emails))

	found, missing := m.Keys(emails)
	for _, email := range missing {
		if similar := m.Similar(email); len(similar) > 0 {
			r.logger.Warn("email not found in mapping", "email", email, "similar", strings.Join(similar, ", "))
		} else {
			r.logger.Warn("email not found in mapping", "email", email)
		}
	}
	for _, key := range found {
		r.logger.Debug("resolved email", "api_key", identity.Redact(key))
	}

	keys = dedupe(append(keys, found...))
	if len(keys) == 0 {
		return nil, fmt.Errorf("%w: none of %d email(s) found in mapping", ErrNoAccounts, len(emails))
	}
	return keys, nil
}

func dedupe(values []string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
