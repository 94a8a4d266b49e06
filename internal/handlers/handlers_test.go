package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/creditsea/creditsea/internal/config"
	"github.com/creditsea/creditsea/internal/middleware"
	"github.com/creditsea/creditsea/internal/models"
	"github.com/creditsea/creditsea/internal/repository"
	"github.com/creditsea/creditsea/internal/service"
	"github.com/creditsea/creditsea/internal/validation"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

const adminPhone = "+910000000001"

type testServer struct {
	router *mux.Router
	users  *repository.MemoryUserRepository
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	users := repository.NewMemoryUserRepository()
	loans := repository.NewMemoryLoanRepository()
	v := validation.New()

	jwtService, err := service.NewJWTService(&config.JWTConfig{
		SecretKey:         "handler-test-secret-key-0123456789abcdef",
		Expiry:            time.Hour,
		AdminPhoneNumbers: []string{adminPhone},
	}, logger)
	if err != nil {
		t.Fatalf("jwt service: %v", err)
	}
	otpService := service.NewOTPService(users, nil, &config.OTPConfig{Expiry: 10 * time.Minute}, logger)
	profileService := service.NewProfileService(users, v, logger)
	applicationService := service.NewApplicationService(users, loans, logger)

	router := NewRouter(
		NewAuthHandlers(otpService, jwtService, profileService, v, logger),
		NewLoanHandlers(applicationService, v, logger),
		middleware.NewAuthMiddleware(jwtService, logger),
		"*",
		logger,
	)
	return &testServer{router: router, users: users}
}

func (s *testServer) do(t *testing.T, method, path, token string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)

	var out map[string]interface{}
	if rr.Header().Get("Content-Type") == "application/json" {
		if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
			t.Fatalf("decode %s %s: %v", method, path, err)
		}
	}
	return rr, out
}

// login runs the OTP flow and returns a session token.
func (s *testServer) login(t *testing.T, phone string) string {
	t.Helper()
	rr, body := s.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{"phoneNumber": phone})
	if rr.Code != http.StatusOK {
		t.Fatalf("send-otp: %d %v", rr.Code, body)
	}
	otp, _ := body["otp"].(string)

	rr, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"phoneNumber": phone, "otp": otp})
	if rr.Code != http.StatusOK {
		t.Fatalf("verify-otp: %d %v", rr.Code, body)
	}
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("expected token, got %v", body)
	}
	return token
}

// seedUser stores a user with a complete profile and the given score.
func (s *testServer) seedUser(t *testing.T, phone string, score int) {
	t.Helper()
	err := s.users.Create(context.Background(), &models.User{
		PhoneNumber: phone,
		Name:        "Asha Rao",
		Email:       "asha@example.com",
		PAN:         "ABCDE1234F",
		CreditScore: score,
	})
	if err != nil {
		t.Fatalf("seed user: %v", err)
	}
}

func TestHealth(t *testing.T) {
	s := newTestServer(t)
	rr, _ := s.do(t, http.MethodGet, "/health", "", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "OK" {
		t.Fatalf("unexpected health response %d %q", rr.Code, rr.Body.String())
	}
}

func TestAuthFlow(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodPost, "/api/auth/send-otp", "", map[string]string{"phoneNumber": "919876543210"})
	if rr.Code != http.StatusOK || body["success"] != true || body["message"] != "OTP sent successfully" {
		t.Fatalf("send-otp: %d %v", rr.Code, body)
	}
	if body["note"] != "For testing purposes - use this OTP" {
		t.Fatalf("expected testing note, got %v", body["note"])
	}
	otp := body["otp"].(string)

	rr, body = s.do(t, http.MethodGet, "/api/auth/get-otp/919876543210", "", nil)
	if rr.Code != http.StatusOK || body["otp"] != otp || body["phoneNumber"] != "+919876543210" {
		t.Fatalf("get-otp: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"phoneNumber": "+919876543210", "otp": "0000"})
	if rr.Code != http.StatusBadRequest || body["code"] != "INVALID_OTP" || body["message"] != "Invalid OTP" {
		t.Fatalf("wrong otp: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/auth/verify-otp", "", map[string]string{"phoneNumber": "+919876543210", "otp": otp})
	if rr.Code != http.StatusOK || body["token"] == "" {
		t.Fatalf("verify-otp: %d %v", rr.Code, body)
	}
	user := body["user"].(map[string]interface{})
	if user["phoneNumber"] != "+919876543210" || user["id"] == "" {
		t.Fatalf("unexpected user %v", user)
	}
	token := body["token"].(string)

	rr, _ = s.do(t, http.MethodGet, "/api/auth/get-otp/919876543210", "", nil)
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected consumed otp to be gone, got %d", rr.Code)
	}

	rr, body = s.do(t, http.MethodGet, "/api/auth/profile", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("profile: %d %v", rr.Code, body)
	}
	profile := body["user"].(map[string]interface{})
	if profile["creditScore"] != float64(models.DefaultCreditScore) || profile["isVerified"] != true {
		t.Fatalf("unexpected profile %v", profile)
	}

	rr, body = s.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{
		"name":   "Asha Rao",
		"email":  "asha@example.com",
		"pan":    "ABCDE1234F",
		"dob":    "1990-05-17",
		"gender": "Female",
	})
	if rr.Code != http.StatusOK || body["message"] != "Profile updated successfully" {
		t.Fatalf("update profile: %d %v", rr.Code, body)
	}
	profile = body["user"].(map[string]interface{})
	if profile["dob"] != "1990-05-17" || profile["pan"] != "ABCDE1234F" {
		t.Fatalf("unexpected updated profile %v", profile)
	}

	rr, body = s.do(t, http.MethodPut, "/api/auth/profile", token, map[string]string{"email": "nope"})
	if rr.Code != http.StatusBadRequest || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("invalid profile: %d %v", rr.Code, body)
	}
}

func TestAuthErrors(t *testing.T) {
	s := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		token  string
		body   interface{}
		status int
		code   string
	}{
		{name: "missing phone", method: http.MethodPost, path: "/api/auth/send-otp", body: map[string]string{}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "bad phone", method: http.MethodPost, path: "/api/auth/send-otp", body: map[string]string{"phoneNumber": "abc"}, status: http.StatusBadRequest, code: "VALIDATION_ERROR"},
		{name: "unknown otp", method: http.MethodGet, path: "/api/auth/get-otp/919999999999", status: http.StatusNotFound, code: "NOT_FOUND"},
		{name: "profile without token", method: http.MethodGet, path: "/api/auth/profile", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "profile with bad token", method: http.MethodGet, path: "/api/auth/profile", token: "garbage", status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
		{name: "apply without token", method: http.MethodPost, path: "/api/loan/apply", body: map[string]int{"loanAmount": 1000, "tenure": 12}, status: http.StatusUnauthorized, code: "UNAUTHORIZED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rr, body := s.do(t, tt.method, tt.path, tt.token, tt.body)
			if rr.Code != tt.status || body["code"] != tt.code || body["success"] != false {
				t.Fatalf("expected %d %s, got %d %v", tt.status, tt.code, rr.Code, body)
			}
		})
	}
}

func TestMalformedBody(t *testing.T) {
	s := newTestServer(t)
	req := httptest.NewRequest(http.MethodPost, "/api/loan/calculate-emi", bytes.NewBufferString("{"))
	rr := httptest.NewRecorder()
	s.router.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestCalculateEMI(t *testing.T) {
	s := newTestServer(t)

	rr, body := s.do(t, http.MethodPost, "/api/loan/calculate-emi", "", map[string]float64{"loanAmount": 50000, "tenure": 12, "interestRate": 12.5})
	if rr.Code != http.StatusOK {
		t.Fatalf("calculate: %d %v", rr.Code, body)
	}
	if body["emi"] != float64(4454) || body["totalPayment"] != float64(53450) || body["totalInterest"] != float64(3450) {
		t.Fatalf("unexpected result %v", body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/loan/calculate-emi", "", map[string]float64{"loanAmount": 20000, "tenure": 6})
	if rr.Code != http.StatusOK || body["emi"] != float64(3456) {
		t.Fatalf("default rate: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/loan/calculate-emi", "", map[string]float64{"loanAmount": 50000, "tenure": 100000})
	if rr.Code != http.StatusBadRequest || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("very long tenure: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/loan/calculate-emi", "", map[string]float64{"loanAmount": 50000, "tenure": 12, "interestRate": 1e-15})
	if rr.Code != http.StatusOK || body["emi"] != float64(4167) {
		t.Fatalf("negligible rate: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/loan/calculate-emi", "", map[string]float64{"loanAmount": -5, "tenure": 6})
	if rr.Code != http.StatusBadRequest || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("negative amount: %d %v", rr.Code, body)
	}
}

func TestLoanFlow(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "+919876543210", 720)
	token := s.login(t, "+919876543210")

	rr, body := s.do(t, http.MethodPost, "/api/loan/check-eligibility", token, map[string]float64{"loanAmount": 80000, "tenure": 12})
	if rr.Code != http.StatusOK || body["eligible"] != true || body["maxEligibleAmount"] != float64(100000) || body["creditScore"] != float64(720) {
		t.Fatalf("eligibility: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/loan/apply", token, map[string]float64{"loanAmount": 150000, "tenure": 12})
	if rr.Code != http.StatusBadRequest || body["code"] != "INELIGIBLE" {
		t.Fatalf("expected ineligible, got %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPost, "/api/loan/apply", token, map[string]float64{"loanAmount": 20000, "tenure": 6})
	if rr.Code != http.StatusOK || body["message"] != "Loan application submitted successfully" {
		t.Fatalf("apply: %d %v", rr.Code, body)
	}
	app := body["application"].(map[string]interface{})
	if app["status"] != "Submitted" || app["emi"] != float64(3456) || app["interestRate"] != 12.5 {
		t.Fatalf("unexpected application %v", app)
	}
	id := app["id"].(string)

	rr, body = s.do(t, http.MethodGet, "/api/loan/applications", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %v", rr.Code, body)
	}
	if apps := body["applications"].([]interface{}); len(apps) != 1 {
		t.Fatalf("expected one application, got %v", apps)
	}

	statusPath := "/api/loan/application/" + id + "/status"

	rr, body = s.do(t, http.MethodPatch, statusPath, token, map[string]string{"status": "Closed"})
	if rr.Code != http.StatusBadRequest || body["code"] != "VALIDATION_ERROR" {
		t.Fatalf("unknown status: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPatch, statusPath, token, map[string]string{"status": "Disbursed"})
	if rr.Code != http.StatusConflict || body["code"] != "INVALID_TRANSITION" {
		t.Fatalf("illegal transition: %d %v", rr.Code, body)
	}

	strangerToken := s.login(t, "+912222222222")
	rr, body = s.do(t, http.MethodPatch, statusPath, strangerToken, map[string]string{"status": "Under Review"})
	if rr.Code != http.StatusForbidden || body["code"] != "FORBIDDEN" {
		t.Fatalf("stranger update: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPatch, statusPath, token, map[string]string{"status": "Under Review"})
	if rr.Code != http.StatusOK {
		t.Fatalf("owner update: %d %v", rr.Code, body)
	}

	adminToken := s.login(t, adminPhone)
	rr, body = s.do(t, http.MethodPatch, statusPath, adminToken, map[string]string{"status": "Approved"})
	if rr.Code != http.StatusOK || body["application"].(map[string]interface{})["status"] != "Approved" {
		t.Fatalf("admin update: %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodPatch, "/api/loan/application/missing/status", adminToken, map[string]string{"status": "Approved"})
	if rr.Code != http.StatusNotFound {
		t.Fatalf("missing application: %d %v", rr.Code, body)
	}
}

func TestLowScoreCannotApply(t *testing.T) {
	s := newTestServer(t)
	s.seedUser(t, "+919876543210", 550)
	token := s.login(t, "+919876543210")

	rr, body := s.do(t, http.MethodPost, "/api/loan/apply", token, map[string]float64{"loanAmount": 1000, "tenure": 6})
	if rr.Code != http.StatusBadRequest || body["message"] != "Low credit score" {
		t.Fatalf("expected low credit score, got %d %v", rr.Code, body)
	}

	rr, body = s.do(t, http.MethodGet, "/api/loan/applications", token, nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("list: %d %v", rr.Code, body)
	}
	if apps := body["applications"].([]interface{}); len(apps) != 0 {
		t.Fatalf("expected no applications, got %v", apps)
	}
}
