package tokenmanager

import (
	"crypto/ed25519"
	"errors"
	"net/http"

	"github.com/mr-tron/base58"
	"github.com/sirupsen/logrus"

	tokenmanager_service "github.com/code-payments/token-manager-server/pkg/code/server/tokenmanager"
)

const (
	v1PathPrefix        = "/v1"
	v1CreateManagerPath = v1PathPrefix + "/createManager"
	v1MintSupplyPath    = v1PathPrefix + "/mintSupply"
	v1GetManagerPath    = v1PathPrefix + "/getManager"

	contentTypeHeaderName      = "content-type"
	jsonContentTypeHeaderValue = "application/json"
)

// Server exposes the token manager service over HTTP. Requests may carry
// secret keys, so it is meant to be reachable only from trusted networks.
type Server struct {
	log     *logrus.Entry
	service *tokenmanager_service.Service

	// authKey verifies bearer tokens when set
	authKey ed25519.PublicKey
}

// NewTokenManagerServer returns a Server. When authKey is set, every request
// must carry a JWT signed by it.
func NewTokenManagerServer(service *tokenmanager_service.Service, authKey ed25519.PublicKey) *Server {
	return &Server{
		log:     logrus.StandardLogger().WithField("type", "tokenmanager/web"),
		service: service,
		authKey: authKey,
	}
}

func (s *Server) createManagerHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodPost {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("http post expected"))
			}

			req, err := newCreateManagerRequestFromHttpContext(r)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}

			resp, err := s.service.CreateManager(ctx, req)
			if err != nil {
				log.WithError(err).Warn("failure creating token manager")
				statusCode, err := HandleServiceErrorInWebContext(err)
				return statusCode, NewGenericApiFailureResponseBody(err)
			}

			respBody := NewGenericApiSuccessResponseBody()
			respBody["manager"] = toManagerView(resp.Manager)
			respBody["signature"] = resp.Signature.ToBase58()
			respBody["payer_token_account"] = base58.Encode(resp.PayerTokenAccount)
			return http.StatusOK, respBody
		}()

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Warn("failed to write body")
		}
	}
}

func (s *Server) mintSupplyHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodPost {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("http post expected"))
			}

			req, err := newMintSupplyRequestFromHttpContext(r)
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(err)
			}
			log = log.WithFields(logrus.Fields{
				"mint":      base58.Encode(req.Mint),
				"recipient": base58.Encode(req.Recipient),
			})

			resp, err := s.service.MintSupply(ctx, req)
			if err != nil {
				log.WithError(err).Warn("failure minting supply")
				statusCode, err := HandleServiceErrorInWebContext(err)
				return statusCode, NewGenericApiFailureResponseBody(err)
			}

			respBody := NewGenericApiSuccessResponseBody()
			respBody["manager"] = toManagerView(resp.Manager)
			respBody["signature"] = resp.Signature.ToBase58()
			respBody["token_account"] = base58.Encode(resp.TokenAccount)
			respBody["balance"] = resp.Balance
			return http.StatusOK, respBody
		}()

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Warn("failed to write body")
		}
	}
}

func (s *Server) getManagerHandler(path string) func(w http.ResponseWriter, r *http.Request) {
	return func(w http.ResponseWriter, r *http.Request) {
		log := s.log.WithField("path", path)

		statusCode, body := func() (int, GenericApiResponseBody) {
			ctx := r.Context()

			if r.Method != http.MethodGet {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("http get expected"))
			}

			mintQueryParam := r.URL.Query()["mint"]
			if len(mintQueryParam) < 1 {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("mint query parameter missing"))
			}

			mint, err := decodePublicKey(mintQueryParam[0])
			if err != nil {
				return http.StatusBadRequest, NewGenericApiFailureResponseBody(errors.New("mint is not a public key"))
			}
			log = log.WithField("mint", mintQueryParam[0])

			manager, err := s.service.GetManager(ctx, mint)
			if err != nil {
				if err != tokenmanager_service.ErrManagerNotFound {
					log.WithError(err).Warn("failure getting token manager")
				}
				statusCode, err := HandleServiceErrorInWebContext(err)
				return statusCode, NewGenericApiFailureResponseBody(err)
			}

			respBody := NewGenericApiSuccessResponseBody()
			respBody["manager"] = toManagerView(manager)
			return http.StatusOK, respBody
		}()

		w.Header().Set(contentTypeHeaderName, jsonContentTypeHeaderValue)
		w.WriteHeader(statusCode)
		if _, err := w.Write([]byte(body.ToString())); err != nil {
			log.WithError(err).Warn("failed to write body")
		}
	}
}

func (s *Server) GetHandlers() map[string]http.HandlerFunc {
	return map[string]http.HandlerFunc{
		v1CreateManagerPath: s.withAuth(v1CreateManagerPath, s.createManagerHandler(v1CreateManagerPath)),
		v1MintSupplyPath:    s.withAuth(v1MintSupplyPath, s.mintSupplyHandler(v1MintSupplyPath)),
		v1GetManagerPath:    s.withAuth(v1GetManagerPath, s.getManagerHandler(v1GetManagerPath)),
	}
}
