package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/nkkko/arrivald/internal/api/models"
	"github.com/nkkko/arrivald/internal/api/response"
	"github.com/nkkko/arrivald/internal/api/validation"
	"github.com/nkkko/arrivald/internal/domain"
	"github.com/nkkko/arrivald/internal/logging"
	"github.com/nkkko/arrivald/pkg/proto"
)

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.HealthResponse{
		Status:     "ok",
		Registered: a.subscription.Registered(),
	})
}

func (a *API) handleGetSubscription(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, models.SubscriptionResponse{
		Registered: a.subscription.Registered(),
		EventClass: proto.DeviceArrivalEvent.String(),
	})
}

func (a *API) handleListTargets(w http.ResponseWriter, r *http.Request) {
	recs := a.targets.List(r.Context())

	out := make([]*models.TargetResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.TargetFromProto(rec))
	}
	response.List(w, r, out, len(out))
}

func (a *API) handleAddTarget(w http.ResponseWriter, r *http.Request) {
	var req models.AddTargetRequest
	if err := validation.ParseAndValidate(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	rec, err := a.targets.Add(r.Context(), req.DeviceID)
	if err != nil {
		a.fail(w, r, err, "Failed to add target")
		return
	}
	response.JSON(w, r, http.StatusCreated, models.TargetFromProto(rec))
}

func (a *API) handleGetTarget(w http.ResponseWriter, r *http.Request) {
	rec, err := a.targets.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, "Failed to get target")
		return
	}
	response.JSON(w, r, http.StatusOK, models.TargetFromProto(rec))
}

func (a *API) handleRemoveTarget(w http.ResponseWriter, r *http.Request) {
	if err := a.targets.Remove(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err, "Failed to remove target")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleStartTarget(w http.ResponseWriter, r *http.Request) {
	rec, err := a.targets.Start(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, "Failed to start target")
		return
	}
	response.JSON(w, r, http.StatusOK, models.TargetFromProto(rec))
}

func (a *API) handleStopTarget(w http.ResponseWriter, r *http.Request) {
	rec, err := a.targets.Stop(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, "Failed to stop target")
		return
	}
	response.JSON(w, r, http.StatusOK, models.TargetFromProto(rec))
}

func (a *API) handleListDevices(w http.ResponseWriter, r *http.Request) {
	recs, err := a.devices.List(r.Context())
	if err != nil {
		a.fail(w, r, err, "Failed to list devices")
		return
	}

	out := make([]*models.DeviceResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, models.DeviceFromProto(rec))
	}
	response.List(w, r, out, len(out))
}

func (a *API) handlePutDevice(w http.ResponseWriter, r *http.Request) {
	var req models.PutDeviceRequest
	if err := validation.ParseAndValidate(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	rec := req.ToProto(chi.URLParam(r, "id"))
	if err := a.devices.Put(r.Context(), rec); err != nil {
		a.fail(w, r, err, "Failed to store device")
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromProto(rec))
}

func (a *API) handleGetDevice(w http.ResponseWriter, r *http.Request) {
	rec, err := a.devices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		a.fail(w, r, err, "Failed to get device")
		return
	}
	response.JSON(w, r, http.StatusOK, models.DeviceFromProto(rec))
}

func (a *API) handleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	if err := a.devices.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
		a.fail(w, r, err, "Failed to delete device")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) handleFireEvent(w http.ResponseWriter, r *http.Request) {
	var req models.FireEventRequest
	if err := validation.ParseAndValidate(r, &req); err != nil {
		response.Error(w, r, err)
		return
	}

	delivered := a.events.Fire(r.Context(), req.ToProto())
	response.JSON(w, r, http.StatusAccepted, models.FireEventResponse{Delivered: delivered})
}

// fail logs unexpected failures and writes the mapped error response
func (a *API) fail(w http.ResponseWriter, r *http.Request, err error, msg string) {
	if domain.StatusOf(err) == domain.StatusUnsuccessful {
		logger := logging.FromContext(r.Context())
		logger.Error().Err(err).Msg(msg)
	}
	response.Error(w, r, err)
}
