/*
Copyright (c) Facebook, Inc. and its affiliates.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package server

import (
	"errors"
	"fmt"

	ntp "github.com/facebookincubator/sntp/ntp/protocol"
)

// stratum we always report. We pretend to be stratum 1
const stratum = 1

var errResponderState = errors.New("response builder called out of order")

type responderState int

const (
	stateAwaitingReceiveStamp responderState = iota
	stateAwaitingTransmitStamp
)

var responderStateToString = map[responderState]string{
	stateAwaitingReceiveStamp:  "AWAITING_RECEIVE_STAMP",
	stateAwaitingTransmitStamp: "AWAITING_TRANSMIT_STAMP",
}

func (s responderState) String() string {
	return responderStateToString[s]
}

// responder builds one response at a time.
// Every worker owns its own responder, so response packets are never shared.
type responder struct {
	state    responderState
	refID    uint32
	response ntp.Packet
}

func newResponder(refID uint32) *responder {
	return &responder{refID: refID}
}

// reset drops whatever was built so far
func (r *responder) reset() {
	r.state = stateAwaitingReceiveStamp
	r.response.Reset()
}

// receive starts a new response to the request received at the given time.
// Version is copied from the request, mode is always server and
// leap indicator is always "no warning", so a typical request gives 0x24.
func (r *responder) receive(request *ntp.Packet, received ntp.WallClock) error {
	if r.state != stateAwaitingReceiveStamp {
		return fmt.Errorf("%w: receive in state %s", errResponderState, r.state)
	}
	r.response.Reset()

	// Version is echoed back. Clients usually send LI=3 (unsynchronized),
	// which must not leak into our answer.
	r.response.Settings = request.Settings
	r.response.SetMode(ntp.ModeServer)
	r.response.SetLeap(ntp.LeapNoWarning)
	r.response.Stratum = stratum
	r.response.ReferenceID = r.refID

	// Originate Timestamp
	// RFC: "Local time at which the request departed the client host for the service host."
	r.response.OrigTime = request.TxTime

	// Receive Timestamp
	// RFC: "Local time at which the request arrived at the service host."
	r.response.RxTime = ntp.ToWire(received)

	r.state = stateAwaitingTransmitStamp
	return nil
}

// transmit finishes the response. Call it right before sending.
// Returned packet is only valid until the next receive.
func (r *responder) transmit(now ntp.WallClock) (*ntp.Packet, error) {
	if r.state != stateAwaitingTransmitStamp {
		return nil, fmt.Errorf("%w: transmit in state %s", errResponderState, r.state)
	}

	// Transmit Timestamp
	// RFC: "Local time at which the reply departed the service host for the client host."
	r.response.TxTime = ntp.ToWire(now)

	// Reference Timestamp
	// We have no upstream, so we were "last set" right now
	r.response.RefTime = r.response.TxTime

	r.state = stateAwaitingReceiveStamp
	return &r.response, nil
}
