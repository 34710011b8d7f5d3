package repositories

import (
	"net/http"
	"net/http/httptest"
)

func newRecorder() *httptest.ResponseRecorder {
	return httptest.NewRecorder()
}

func requestWithCookies(rec *httptest.ResponseRecorder) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/dashboard", nil)
	for _, c := range rec.Result().Cookies() {
		req.AddCookie(c)
	}
	return req
}
