package cacheclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io/ioutil"
	"net/http"
	"strconv"
	"time"

	"github.com/buger/jsonparser"
	"github.com/golang/glog"
	"golang.org/x/net/context/ctxhttp"

	"github.com/bidflare/bidflare/config"
	"github.com/bidflare/bidflare/metrics"
)

// Client stores creative payloads in the external cache service.
type Client interface {
	// PutJson stores the given values in the cache.
	//
	// The returned string slice will always have the same number of elements as the
	// values argument. If a value could not be saved, the element will be an empty
	// string. Implementations are responsible for logging any relevant errors to
	// the app logs.
	PutJson(ctx context.Context, values []Cacheable) ([]string, []error)
}

type PayloadType string

const (
	TypeJSON PayloadType = "json"
	TypeXML  PayloadType = "xml"
)

type Cacheable struct {
	Type       PayloadType
	Data       json.RawMessage
	TTLSeconds int64
}

func NewClient(conf *config.Cache, metricsEngine metrics.MetricsEngine) Client {
	return &clientImpl{
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:    10,
				IdleConnTimeout: 65 * time.Second,
			},
		},
		putUrl:  conf.URL,
		metrics: metricsEngine,
	}
}

type clientImpl struct {
	httpClient *http.Client
	putUrl     string
	metrics    metrics.MetricsEngine
}

func (c *clientImpl) PutJson(ctx context.Context, values []Cacheable) (uuids []string, errs []error) {
	errs = make([]error, 0, 1)
	if len(values) < 1 {
		return nil, errs
	}

	uuidsToReturn := make([]string, len(values))

	postBody := encodeValues(values)
	httpReq, err := http.NewRequest("POST", c.putUrl, bytes.NewReader(postBody))
	if err != nil {
		glog.Errorf("Error creating POST request to cache: %v", err)
		errs = append(errs, fmt.Errorf("Error creating POST request to cache: %v", err))
		return uuidsToReturn, errs
	}

	httpReq.Header.Add("Content-Type", "application/json;charset=utf-8")
	httpReq.Header.Add("Accept", "application/json")

	startTime := time.Now()
	anResp, err := ctxhttp.Do(ctx, c.httpClient, httpReq)
	elapsedTime := time.Since(startTime)
	if err != nil {
		c.metrics.RecordCacheRequestTime(false, elapsedTime)
		friendlyErr := fmt.Errorf("Error sending the request to the cache: %v; Duration=%v", err, elapsedTime)
		glog.Error(friendlyErr)
		errs = append(errs, friendlyErr)
		return uuidsToReturn, errs
	}
	defer anResp.Body.Close()
	c.metrics.RecordCacheRequestTime(true, elapsedTime)

	responseBody, _ := ioutil.ReadAll(anResp.Body)
	if anResp.StatusCode != 200 {
		glog.Errorf("Cache call to %s returned %d: %s", c.putUrl, anResp.StatusCode, responseBody)
		errs = append(errs, fmt.Errorf("Cache call to %s returned %d: %s", c.putUrl, anResp.StatusCode, responseBody))
		return uuidsToReturn, errs
	}

	currentIndex := 0
	processResponse := func(uuidObj []byte, _ jsonparser.ValueType, _ int, err error) {
		if uuid, valueType, _, err := jsonparser.Get(uuidObj, "uuid"); err != nil {
			glog.Errorf("Cache returned a bad value at index %d. Error was: %v. Response body was: %s", currentIndex, err, string(responseBody))
			errs = append(errs, fmt.Errorf("Cache returned a bad value at index %d. Error was: %v. Response body was: %s", currentIndex, err, string(responseBody)))
		} else if valueType != jsonparser.String {
			glog.Errorf("Cache returned a %v at index %d in: %v", valueType, currentIndex, string(responseBody))
			errs = append(errs, fmt.Errorf("Cache returned a %v at index %d in: %v", valueType, currentIndex, string(responseBody)))
		} else {
			if uuidsToReturn[currentIndex], err = jsonparser.ParseString(uuid); err != nil {
				glog.Errorf("Cache response index %d could not be parsed as string: %v", currentIndex, err)
				errs = append(errs, fmt.Errorf("Cache response index %d could not be parsed as string: %v", currentIndex, err))
				uuidsToReturn[currentIndex] = ""
			}
		}
		currentIndex++
	}

	if _, err := jsonparser.ArrayEach(responseBody, processResponse, "responses"); err != nil {
		glog.Errorf("Error interpreting cache response: %v\nResponse was: %s", err, string(responseBody))
		errs = append(errs, fmt.Errorf("Error interpreting cache response: %v\nResponse was: %s", err, string(responseBody)))
		return uuidsToReturn, errs
	}

	return uuidsToReturn, errs
}

func encodeValues(values []Cacheable) []byte {
	// Assumes values is non-empty. PutJson respects this.
	var buf bytes.Buffer
	buf.WriteString(`{"puts":[`)
	for i := 0; i < len(values); i++ {
		encodeValueToBuffer(values[i], i != 0, &buf)
	}
	buf.WriteString("]}")
	return buf.Bytes()
}

func encodeValueToBuffer(value Cacheable, leadingComma bool, buffer *bytes.Buffer) {
	if leadingComma {
		buffer.WriteByte(',')
	}

	buffer.WriteString(`{"type":"`)
	buffer.WriteString(string(value.Type))
	if value.TTLSeconds > 0 {
		buffer.WriteString(`","ttlseconds":`)
		buffer.WriteString(strconv.FormatInt(value.TTLSeconds, 10))
		buffer.WriteString(`,"value":`)
	} else {
		buffer.WriteString(`","value":`)
	}
	buffer.Write(value.Data)
	buffer.WriteByte('}')
}
