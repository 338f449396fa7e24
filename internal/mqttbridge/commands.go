package mqttbridge

import (
	"fmt"
	"strconv"
	"strings"

	"snowmelt-controller/internal/engine"
	"snowmelt-controller/internal/model"
)

var validSetpoints = map[string]bool{
	engine.SetpointGlycolHigh:  true,
	engine.SetpointGlycolDelta: true,
	engine.SetpointDHWHigh:     true,
	engine.SetpointDHWDelta:    true,
	engine.SetpointEcoHigh:     true,
	engine.SetpointEcoDelta:    true,
}

var validEquipment = map[model.EquipmentRole]bool{}

func init() {
	for _, role := range model.EquipmentRoles {
		validEquipment[role] = true
	}
}

// parseCommand turns an inbound set-topic message into an engine
// command. Topic layout under the base topic:
//
//	equipment/<role>/mode/set  auto|on|off
//	system/<name>/set          ON|OFF
//	setpoint/<name>/set        temperature or delta in F
//	eco_schedule/set           HH:MM-HH:MM
//	timer/set                  minutes, 0 or "cancel" to cancel
func parseCommand(base, topic, payload string) (engine.Command, error) {
	inner, ok := strings.CutPrefix(topic, base+"/")
	if !ok {
		return engine.Command{}, fmt.Errorf("topic %q outside base topic", topic)
	}
	inner, ok = strings.CutSuffix(inner, "/set")
	if !ok {
		return engine.Command{}, fmt.Errorf("topic %q is not a set topic", topic)
	}
	payload = strings.TrimSpace(payload)

	parts := strings.Split(inner, "/")
	switch {
	case len(parts) == 3 && parts[0] == "equipment" && parts[2] == "mode":
		role := model.EquipmentRole(parts[1])
		if !validEquipment[role] {
			return engine.Command{}, fmt.Errorf("unknown equipment %q", parts[1])
		}
		mode, ok := model.ParseEquipmentMode(strings.ToLower(payload))
		if !ok {
			return engine.Command{}, fmt.Errorf("invalid mode %q", payload)
		}
		return engine.Command{Kind: engine.CmdEquipmentMode, Equipment: role, Mode: mode}, nil

	case len(parts) == 2 && parts[0] == "system":
		switch parts[1] {
		case engine.SystemSnowmelt, engine.SystemDHW, engine.SystemEco:
		default:
			return engine.Command{}, fmt.Errorf("unknown system %q", parts[1])
		}
		enabled, err := parseOnOff(payload)
		if err != nil {
			return engine.Command{}, err
		}
		return engine.Command{Kind: engine.CmdSystemEnable, System: parts[1], Enabled: enabled}, nil

	case len(parts) == 2 && parts[0] == "setpoint":
		if !validSetpoints[parts[1]] {
			return engine.Command{}, fmt.Errorf("unknown setpoint %q", parts[1])
		}
		value, err := strconv.ParseFloat(payload, 64)
		if err != nil {
			return engine.Command{}, fmt.Errorf("invalid setpoint value %q", payload)
		}
		return engine.Command{Kind: engine.CmdSetpoint, Setpoint: parts[1], Value: value}, nil

	case len(parts) == 1 && parts[0] == "eco_schedule":
		start, end, ok := strings.Cut(payload, "-")
		if !ok {
			return engine.Command{}, fmt.Errorf("eco schedule %q is not HH:MM-HH:MM", payload)
		}
		return engine.Command{
			Kind:     engine.CmdEcoSchedule,
			EcoStart: strings.TrimSpace(start),
			EcoEnd:   strings.TrimSpace(end),
		}, nil

	case len(parts) == 1 && parts[0] == "timer":
		if strings.EqualFold(payload, "cancel") {
			return engine.Command{Kind: engine.CmdTimerCancel}, nil
		}
		minutes, err := strconv.Atoi(payload)
		if err != nil || minutes < 0 {
			return engine.Command{}, fmt.Errorf("invalid timer minutes %q", payload)
		}
		if minutes == 0 {
			return engine.Command{Kind: engine.CmdTimerCancel}, nil
		}
		return engine.Command{Kind: engine.CmdTimerStart, TimerMinutes: minutes}, nil
	}

	return engine.Command{}, fmt.Errorf("unrecognized command topic %q", topic)
}

func parseOnOff(payload string) (bool, error) {
	switch strings.ToUpper(payload) {
	case "ON", "TRUE", "1":
		return true, nil
	case "OFF", "FALSE", "0":
		return false, nil
	}
	return false, fmt.Errorf("invalid on/off payload %q", payload)
}
