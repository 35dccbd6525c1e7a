package healthplanet

import (
	"errors"
	"net/http"

	"github.com/2beens/healthdash/internal/telemetry/tracing"
	"github.com/2beens/healthdash/pkg"

	log "github.com/sirupsen/logrus"
)

// Handler is the same-origin proxy in front of the health planet API:
// the frontend never sees the access token, it just POSTs a date range
// here and gets the upstream JSON body relayed back unchanged.
type Handler struct {
	client *Client
}

func NewHandler(client *Client) *Handler {
	return &Handler{
		client: client,
	}
}

func (handler *Handler) HandleHealthData(w http.ResponseWriter, r *http.Request) {
	ctx, span := tracing.GlobalTracer.Start(r.Context(), "healthplanet.handleHealthData")
	defer span.End()

	if err := r.ParseForm(); err != nil {
		log.Errorf("health data proxy: parse form: %s", err)
		pkg.WriteJSONError(w, "invalid form body", http.StatusBadRequest)
		return
	}

	from := r.PostFormValue("from")
	to := r.PostFormValue("to")
	tag := r.PostFormValue("tag")

	if from == "" || to == "" {
		pkg.WriteJSONError(w, "from and to parameters are required", http.StatusBadRequest)
		return
	}

	respBytes, err := handler.client.GetInnerscan(ctx, from, to, tag)
	if err != nil {
		log.Errorf("health data proxy [%s - %s]: %s", from, to, err)
		if errors.Is(err, ErrAccessTokenNotSet) {
			pkg.WriteJSONError(w, ErrAccessTokenNotSet.Error(), http.StatusInternalServerError)
			return
		}
		pkg.WriteJSONError(w, "Failed to fetch health data", http.StatusInternalServerError)
		return
	}

	pkg.WriteResponseBytesOK(w, pkg.ContentType.JSON, respBytes)
}
