package http

import (
	"encoding/json"
	"net/http"

	"github.com/artemis-registry/artemis/apierr"
	"github.com/artemis-registry/artemis/loadbalancer"
	"github.com/artemis-registry/artemis/model"
)

// responseStatus carries the code/message envelope every wire response
// uses, per spec §7: "clients see JSON response bodies with a
// responseStatus object carrying a code (Success / BadRequest /
// InternalError) and message, plus the operation-specific payload."
type responseStatus struct {
	Code    string `json:"code"`
	Message string `json:"message,omitempty"`
}

func statusSuccess() responseStatus { return responseStatus{Code: "Success"} }

type responseEnvelope struct {
	ResponseStatus responseStatus `json:"responseStatus"`
}

// Respond writes v as JSON with status code. HTTP status is 200 for all
// successful protocol-level responses per spec §7; handlers pass 400
// only for malformed requests and missing replication markers.
func Respond(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// RespondError writes a BadRequest envelope with the given message.
func RespondError(w http.ResponseWriter, code int, message string) {
	Respond(w, code, responseEnvelope{ResponseStatus: responseStatus{Code: "BadRequest", Message: message}})
}

func decodeBody(r *http.Request, v any) bool {
	return json.NewDecoder(r.Body).Decode(v) == nil
}

type registerRequest struct {
	Instances []model.Instance `json:"instances"`
}
type registerResponse struct {
	ResponseStatus  responseStatus      `json:"responseStatus"`
	FailedInstances []model.InstanceKey `json:"failedInstances,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.registry.Register(req.Instances)
	Respond(w, http.StatusOK, registerResponse{ResponseStatus: statusSuccess()})
}

func (s *Server) handleReplicationRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.registry.RegisterFromReplication(req.Instances)
	Respond(w, http.StatusOK, registerResponse{ResponseStatus: statusSuccess()})
}

type keysRequest struct {
	InstanceKeys []model.InstanceKey `json:"instanceKeys"`
}
type heartbeatResponse struct {
	ResponseStatus     responseStatus      `json:"responseStatus"`
	FailedInstanceKeys []model.InstanceKey `json:"failedInstanceKeys,omitempty"`
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	failed := s.registry.Heartbeat(req.InstanceKeys)
	status := statusSuccess()
	if len(failed) > 0 {
		status = responseStatus{Code: "BadRequest", Message: "some heartbeats failed"}
	}
	Respond(w, http.StatusOK, heartbeatResponse{ResponseStatus: status, FailedInstanceKeys: failed})
}

func (s *Server) handleReplicationHeartbeat(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	failed := s.registry.HeartbeatFromReplication(req.InstanceKeys)
	status := statusSuccess()
	if len(failed) > 0 {
		status = responseStatus{Code: "BadRequest", Message: "some heartbeats failed"}
	}
	Respond(w, http.StatusOK, heartbeatResponse{ResponseStatus: status, FailedInstanceKeys: failed})
}

func (s *Server) handleUnregister(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.registry.Unregister(req.InstanceKeys)
	Respond(w, http.StatusOK, responseEnvelope{ResponseStatus: statusSuccess()})
}

func (s *Server) handleReplicationUnregister(w http.ResponseWriter, r *http.Request) {
	var req keysRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	s.registry.UnregisterFromReplication(req.InstanceKeys)
	Respond(w, http.StatusOK, responseEnvelope{ResponseStatus: statusSuccess()})
}

type discoveryServiceRequest struct {
	DiscoveryConfig struct {
		ServiceID string `json:"serviceId"`
		RegionID  string `json:"regionId"`
		ZoneID    string `json:"zoneId"`
	} `json:"discoveryConfig"`
	// LoadBalance, when set to "RANDOM" or "ROUND_ROBIN", asks the
	// handler to additionally apply the load balancer and return a
	// single selected instance instead of the full filtered list.
	LoadBalance string `json:"loadBalance,omitempty"`
}
type getServiceResponse struct {
	ResponseStatus responseStatus  `json:"responseStatus"`
	Service        *model.Service  `json:"service,omitempty"`
	Instance       *model.Instance `json:"instance,omitempty"`
}

func (s *Server) handleDiscoverService(w http.ResponseWriter, r *http.Request) {
	var req discoveryServiceRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	cfg := model.DiscoveryConfig{
		ServiceID: req.DiscoveryConfig.ServiceID,
		RegionID:  req.DiscoveryConfig.RegionID,
		ZoneID:    req.DiscoveryConfig.ZoneID,
		ClientIP:  clientIP(r),
	}
	svc, err := s.registry.GetService(cfg)
	if err != nil {
		if apierr.Is(err, apierr.KindNotFound) {
			Respond(w, http.StatusOK, getServiceResponse{ResponseStatus: responseStatus{Code: "BadRequest", Message: "service not found"}})
			return
		}
		Respond(w, http.StatusOK, getServiceResponse{ResponseStatus: responseStatus{Code: "InternalError", Message: err.Error()}})
		return
	}

	if req.LoadBalance == "" {
		Respond(w, http.StatusOK, getServiceResponse{ResponseStatus: statusSuccess(), Service: &svc})
		return
	}

	picked, ok := s.balancer.Select(svc.Instances, loadbalancer.Strategy(req.LoadBalance))
	if !ok {
		Respond(w, http.StatusOK, getServiceResponse{ResponseStatus: responseStatus{Code: "BadRequest", Message: "no instances available for load balancing"}})
		return
	}
	Respond(w, http.StatusOK, getServiceResponse{ResponseStatus: statusSuccess(), Instance: &picked})
}

type listServicesRequest struct {
	RegionID string `json:"regionId"`
	ZoneID   string `json:"zoneId"`
}
type listServicesResponse struct {
	ResponseStatus responseStatus  `json:"responseStatus"`
	Services       []model.Service `json:"services"`
}

func (s *Server) handleDiscoverServices(w http.ResponseWriter, r *http.Request) {
	var req listServicesRequest
	_ = decodeBody(r, &req)
	Respond(w, http.StatusOK, listServicesResponse{ResponseStatus: statusSuccess(), Services: s.registry.GetServices()})
}

type deltaRequest struct {
	RegionID      string `json:"regionId"`
	ZoneID        string `json:"zoneId"`
	SinceRevision int64  `json:"sinceTimestamp"`
}
type deltaResponse struct {
	ResponseStatus responseStatus  `json:"responseStatus"`
	Services       []model.Service `json:"services"`
	Revision       int64           `json:"revision"`
}

func (s *Server) handleDiscoverDelta(w http.ResponseWriter, r *http.Request) {
	var req deltaRequest
	if !decodeBody(r, &req) {
		RespondError(w, http.StatusBadRequest, "malformed request body")
		return
	}
	services, revision := s.registry.GetServicesDelta(req.SinceRevision)
	Respond(w, http.StatusOK, deltaResponse{ResponseStatus: statusSuccess(), Services: services, Revision: revision})
}

func clientIP(r *http.Request) string {
	if ip := r.Header.Get("X-Forwarded-For"); ip != "" {
		return ip
	}
	return r.RemoteAddr
}
