package dashhttp

import (
	"encoding/json"
	"errors"
	"strings"

	"github.com/stdutil/log"
	rslt "github.com/stdutil/result"
)

// ResultData - a result structure and a JSON raw message
type ResultData struct {
	rslt.Result
	Data json.RawMessage `json:"data"`
}

// DecodeResult converts the outcome of a call into a result
//
// A body shaped like a result envelope (status, messages, data) is unpacked;
// its messages are classified by their log type prefix. Any other JSON body
// becomes the data of an OK result. A transport error becomes an error
// message, and the body of a non 2xx response is kept as data.
func DecodeResult(resp *Response, err error) (rd ResultData) {
	rd = ResultData{
		Result: rslt.InitResult(),
	}
	if err != nil {
		rd.Result.AddErr(err)
		rd.Return(rslt.EXCEPTION)
		var se *StatusError
		if errors.As(err, &se) {
			rd.Data = se.Body
		}
		return
	}
	if resp == nil || len(resp.Body) == 0 {
		rd.Return(rslt.OK)
		return
	}
	data := resp.Body

	// Create a temporary result data for unmarshalling purposes
	// The internal Log field is not populated when unmarshalling
	trd := ResultData{}
	if err = json.Unmarshal(data, &trd); err != nil {
		if !json.Valid(data) {
			rd.Result.AddErr(err)
			rd.Return(rslt.EXCEPTION)
			rd.Data = data // This is not marshable to resultdata, we'll try to send the real result
			return
		}
		rd.Data = data
		rd.Return(rslt.OK)
		return
	}
	if trd.Status == "" && len(trd.Messages) == 0 && len(trd.Data) == 0 {
		rd.Data = data
		rd.Return(rslt.OK)
		return
	}

	// Assign temp to result
	rd.Data = trd.Data
	rd.Return(rslt.Status(trd.Status))
	for _, m := range trd.Messages {
		if len(m) < 3 {
			continue
		}
		msgType := m[0:3]
		msg := m[3:]
		if strings.HasPrefix(msg, ": ") {
			msg = msg[2:]
		}
		if strings.HasPrefix(msg, "[") {
			if endBr := strings.Index(msg, "]"); endBr != -1 {
				rd.Prefix = msg[1:endBr]
				msg = strings.TrimPrefix(msg[endBr+1:], ": ")
			}
		}
		switch msgType {
		case string(log.Warn):
			rd.Result.AddWarning(msg)
		case string(log.Error):
			rd.Result.AddError(msg)
		case string(log.Fatal):
			rd.Result.AddError(msg)
		case string(log.Success):
			rd.Result.AddSuccess(msg)
		case string(log.App):
			rd.Result.AddRawMsg(msg)
		default:
			rd.Result.AddRawMsg(m)
		}
	}
	return
}

func getJsonConverted[T any](result *ResultData) rslt.ResultAny[T] {
	var data T
	if len(result.Data) == 0 {
		return rslt.ResultAny[T]{
			Result: result.Result,
			Data:   data,
		}
	}
	if err := json.Unmarshal(result.Data, &data); err != nil {
		return rslt.ResultAny[T]{
			Result: rslt.InitResult(
				rslt.WithStatus(rslt.EXCEPTION),
				rslt.WithMessage(err.Error()),
			),
			Data: data,
		}
	}
	return rslt.ResultAny[T]{
		Result: result.Result,
		Data:   data,
	}
}
