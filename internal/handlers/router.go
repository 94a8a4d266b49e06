package handlers

import (
	"net/http"

	"github.com/creditsea/creditsea/internal/middleware"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
)

// NewRouter wires every route. OPTIONS is accepted on each path so the CORS
// middleware can answer preflight requests.
func NewRouter(
	authHandlers *AuthHandlers,
	loanHandlers *LoanHandlers,
	authMiddleware *middleware.AuthMiddleware,
	corsOrigin string,
	logger *logrus.Logger,
) *mux.Router {
	router := mux.NewRouter()

	router.Use(middleware.CORS(corsOrigin))
	router.Use(middleware.RequestID)
	router.Use(middleware.LoggingMiddleware(logger))

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET", "OPTIONS")

	api := router.PathPrefix("/api").Subrouter()
	requireAuth := authMiddleware.RequireAuth

	auth := api.PathPrefix("/auth").Subrouter()
	auth.HandleFunc("/send-otp", authHandlers.SendOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/verify-otp", authHandlers.VerifyOTP).Methods("POST", "OPTIONS")
	auth.HandleFunc("/get-otp/{phoneNumber}", authHandlers.GetOTP).Methods("GET", "OPTIONS")
	auth.Handle("/profile", requireAuth(http.HandlerFunc(authHandlers.GetProfile))).Methods("GET", "OPTIONS")
	auth.Handle("/profile", requireAuth(http.HandlerFunc(authHandlers.UpdateProfile))).Methods("PUT")

	loan := api.PathPrefix("/loan").Subrouter()
	loan.HandleFunc("/calculate-emi", loanHandlers.CalculateEMI).Methods("POST", "OPTIONS")
	loan.Handle("/check-eligibility", requireAuth(http.HandlerFunc(loanHandlers.CheckEligibility))).Methods("POST", "OPTIONS")
	loan.Handle("/apply", requireAuth(http.HandlerFunc(loanHandlers.Apply))).Methods("POST", "OPTIONS")
	loan.Handle("/applications", requireAuth(http.HandlerFunc(loanHandlers.ListApplications))).Methods("GET", "OPTIONS")
	loan.Handle("/application/{id}/status", requireAuth(http.HandlerFunc(loanHandlers.UpdateStatus))).Methods("PATCH", "OPTIONS")

	return router
}
