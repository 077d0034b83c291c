// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package api

import (
	"net/http"
	"time"

	requestutil "github.com/taibuivan/storefront/internal/platform/request"
	"github.com/taibuivan/storefront/internal/platform/respond"
	"github.com/taibuivan/storefront/internal/session"
)

type pageView struct {
	Page      string       `json:"page"`
	User      session.User `json:"user"`
	ExpiresIn string       `json:"expiresIn"`
}

// page answers a protected page with the user the gate admitted.
func page(name string) http.HandlerFunc {
	return func(writer http.ResponseWriter, request *http.Request) {
		now := time.Now()
		current, err := requestutil.RequiredSession(request, now)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}

		respond.OK(writer, pageView{
			Page:      name,
			User:      current.User,
			ExpiresIn: session.HumanRemaining(current.Remaining(now)),
		})
	}
}
