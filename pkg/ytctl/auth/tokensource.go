// SPDX-FileCopyrightText: 2025 Deutsche Telekom AG
//
// SPDX-License-Identifier: Apache-2.0

package auth

import (
	"sync"

	"go.uber.org/zap"
	"golang.org/x/oauth2"
)

// persistingTokenSource writes every newly minted access token back to the
// token manager, so a refresh done by the API client survives the process.
type persistingTokenSource struct {
	base    oauth2.TokenSource
	tokens  *TokenManager
	key     string
	idToken string
	log     *zap.SugaredLogger

	mu   sync.Mutex
	last string
}

func (s *persistingTokenSource) Token() (*oauth2.Token, error) {
	token, err := s.base.Token()
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if token.AccessToken == s.last {
		return token, nil
	}
	s.last = token.AccessToken
	if s.tokens == nil {
		return token, nil
	}
	stored := StoredTokenFrom(token)
	if stored.IDToken == "" {
		stored.IDToken = s.idToken
	}
	if err := s.tokens.SaveToken(s.key, stored); err != nil {
		s.log.Warnw("Failed to store refreshed token", "key", s.key, "error", err)
	}
	return token, nil
}
