package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"net/url"
	"strconv"

	. "github.com/PelionIoT/tokenring/cluster"
	. "github.com/PelionIoT/tokenring/error"
	. "github.com/PelionIoT/tokenring/historian"
	"github.com/PelionIoT/tokenring/routes"
)

// ErrorStatusCode is returned for a non-200 response whose body is not a
// ring error
type ErrorStatusCode struct {
	StatusCode int
	Message    string
}

func (errorStatus *ErrorStatusCode) Error() string {
	return errorStatus.Message
}

type APIClientConfig struct {
	Servers []string
}

type APIClient struct {
	servers         []string
	nextServerIndex int
	httpClient      *http.Client
}

func NewAPIClient(config APIClientConfig) *APIClient {
	return &APIClient{
		servers:         config.Servers,
		nextServerIndex: 0,
		httpClient:      &http.Client{},
	}
}

func (client *APIClient) nextServer() (server string) {
	if len(client.servers) == 0 {
		return
	}

	server = client.servers[client.nextServerIndex]
	client.nextServerIndex = (client.nextServerIndex + 1) % len(client.servers)

	return
}

// Join adds a node to the ring and returns its ID. A full ring yields
// ECapacityExceeded.
func (client *APIClient) Join(ctx context.Context) (uint64, error) {
	return client.nodeIDRequest(ctx, "POST", "/ring/nodes")
}

// Leave removes the most recently joined node and returns its ID. An empty
// ring yields ERingEmpty.
func (client *APIClient) Leave(ctx context.Context) (uint64, error) {
	return client.nodeIDRequest(ctx, "DELETE", "/ring/nodes")
}

func (client *APIClient) Remove(ctx context.Context, nodeID uint64) error {
	_, err := client.nodeIDRequest(ctx, "DELETE", "/ring/nodes/"+strconv.FormatUint(nodeID, 10))

	return err
}

func (client *APIClient) nodeIDRequest(ctx context.Context, httpVerb string, endpointURL string) (uint64, error) {
	response, err := client.sendRequest(ctx, httpVerb, endpointURL, nil)

	if err != nil {
		return 0, err
	}

	var nodeIDResponse routes.NodeIDResponse

	if err := json.Unmarshal(response, &nodeIDResponse); err != nil {
		return 0, err
	}

	return nodeIDResponse.ID, nil
}

func (client *APIClient) Snapshot(ctx context.Context) (RingSnapshot, error) {
	var snapshot RingSnapshot

	response, err := client.sendRequest(ctx, "GET", "/ring", nil)

	if err != nil {
		return RingSnapshot{}, err
	}

	if err := json.Unmarshal(response, &snapshot); err != nil {
		return RingSnapshot{}, err
	}

	return snapshot, nil
}

func (client *APIClient) History(ctx context.Context, query HistoryQuery) ([]*Event, error) {
	var events []*Event

	params := url.Values{}

	if query.After != 0 {
		params.Set("after", strconv.FormatUint(query.After, 10))
	}

	if query.Limit > 0 {
		params.Set("limit", strconv.Itoa(query.Limit))
	}

	endpointURL := "/ring/history"

	if len(params) != 0 {
		endpointURL += "?" + params.Encode()
	}

	response, err := client.sendRequest(ctx, "GET", endpointURL, nil)

	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(response, &events); err != nil {
		return nil, err
	}

	return events, nil
}

func (client *APIClient) sendRequest(ctx context.Context, httpVerb string, endpointURL string, body []byte) ([]byte, error) {
	u := fmt.Sprintf("http://%s%s", client.nextServer(), endpointURL)
	request, err := http.NewRequest(httpVerb, u, bytes.NewReader(body))

	if err != nil {
		return nil, err
	}

	request = request.WithContext(ctx)

	resp, err := client.httpClient.Do(request)

	if err != nil {
		return nil, err
	}

	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		errorMessage, err := ioutil.ReadAll(resp.Body)

		if err != nil {
			return nil, err
		}

		if ringError, ok := Decode(errorMessage); ok {
			return nil, ringError
		}

		return nil, &ErrorStatusCode{Message: string(errorMessage), StatusCode: resp.StatusCode}
	}

	responseBody, err := ioutil.ReadAll(resp.Body)

	if err != nil {
		return nil, err
	}

	return responseBody, nil
}
