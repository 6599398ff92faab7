package agent

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// Payload sent to the server when the agent registers.
type registrationRequest struct {
	Address      string `json:"address"`
	AgentPort    int    `json:"agentPort"`
	AgentVersion string `json:"agentVersion"`
}

// Server's answer to a registration request.
type registrationResponse struct {
	ID int64 `json:"id"`
}

// Delay between registration attempts when the server is down.
const registrationRetryInterval = 10 * time.Second

// Registrator talks to the server's machines endpoint.
type Registrator struct {
	innerClient *resty.Client
	serverURL   string
}

// Instantiates the registrator for the given server URL.
func NewRegistrator(serverURL string) *Registrator {
	return &Registrator{
		innerClient: resty.New(),
		serverURL:   strings.TrimSuffix(serverURL, "/"),
	}
}

// Sets custom timeout for REST client requests.
func (registrator *Registrator) SetRequestTimeout(timeout time.Duration) {
	registrator.innerClient.SetTimeout(timeout)
}

// Registers the agent in the server. If retry is true the attempt is
// repeated until the server accepts the connection. This is used during
// startup so the agent comes up cleanly even when the server boots
// later than the agents.
func (registrator *Registrator) Register(address string, agentPort int, agentVersion string, retry bool) (int64, error) {
	request := &registrationRequest{
		Address:      address,
		AgentPort:    agentPort,
		AgentVersion: agentVersion,
	}

	url := registrator.serverURL + "/api/machines"
	for {
		var result registrationResponse
		response, err := registrator.innerClient.R().
			SetBody(request).
			SetResult(&result).
			Post(url)
		if err != nil {
			if retry && strings.Contains(err.Error(), "connection refused") {
				log.Printf("Sleeping for %s before next registration attempt", registrationRetryInterval)
				time.Sleep(registrationRetryInterval)
				continue
			}
			return 0, errors.Wrapf(err, "problem registering machine in %s", registrator.serverURL)
		}

		switch response.StatusCode() {
		case http.StatusOK, http.StatusCreated:
			log.Printf("Machine registered with ID %d", result.ID)
			return result.ID, nil
		case http.StatusConflict:
			// Already registered; the machine ID comes back in the
			// Location header.
			location := response.Header().Get("Location")
			var id int64
			if _, err := fmt.Sscanf(location[strings.LastIndex(location, "/")+1:], "%d", &id); err != nil {
				return 0, errors.New("missing machine ID in registration conflict response")
			}
			return id, nil
		default:
			return 0, errors.Errorf("registration rejected by %s: status %d", registrator.serverURL, response.StatusCode())
		}
	}
}

// Reports to the server that the agent is still alive.
func (registrator *Registrator) Ping(machineID int64) error {
	url := fmt.Sprintf("%s/api/machines/%d/ping", registrator.serverURL, machineID)
	response, err := registrator.innerClient.R().Post(url)
	if err != nil {
		return errors.Wrapf(err, "problem pinging the server at %s", registrator.serverURL)
	}
	if response.StatusCode() != http.StatusOK {
		return errors.Errorf("ping rejected by %s: status %d", registrator.serverURL, response.StatusCode())
	}
	return nil
}
