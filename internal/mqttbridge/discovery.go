package mqttbridge

import (
	"encoding/json"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/engine"
	"snowmelt-controller/internal/model"
)

type discoveryDevice struct {
	Identifiers  []string `json:"identifiers"`
	Name         string   `json:"name"`
	Manufacturer string   `json:"manufacturer,omitempty"`
	Model        string   `json:"model,omitempty"`
}

// discoveryConfig is the Home Assistant MQTT discovery payload. One
// struct covers sensor, binary_sensor, switch, select and number
// entities; the omitempty tags drop fields a component does not use.
type discoveryConfig struct {
	Name              string          `json:"name"`
	UniqueID          string          `json:"unique_id"`
	StateTopic        string          `json:"state_topic,omitempty"`
	CommandTopic      string          `json:"command_topic,omitempty"`
	AvailabilityTopic string          `json:"availability_topic,omitempty"`
	UnitOfMeasurement string          `json:"unit_of_measurement,omitempty"`
	DeviceClass       string          `json:"device_class,omitempty"`
	StateClass        string          `json:"state_class,omitempty"`
	Icon              string          `json:"icon,omitempty"`
	PayloadOn         string          `json:"payload_on,omitempty"`
	PayloadOff        string          `json:"payload_off,omitempty"`
	Options           []string        `json:"options,omitempty"`
	Min               float64         `json:"min,omitempty"`
	Max               float64         `json:"max,omitempty"`
	Step              float64         `json:"step,omitempty"`
	Mode              string          `json:"mode,omitempty"`
	Device            discoveryDevice `json:"device"`
}

type discoveryMessage struct {
	component string
	objectID  string
	config    discoveryConfig
}

var sensorNames = map[model.SensorRole]string{
	model.SensorGlycolReturn: "Glycol Return",
	model.SensorGlycolSupply: "Glycol Supply",
	model.SensorHXIn:         "Heat Exchanger In",
	model.SensorHXOut:        "Heat Exchanger Out",
	model.SensorDHWTank:      "DHW Tank",
}

var equipmentNames = map[model.EquipmentRole]string{
	model.EquipGlycolPump:  "Glycol Pump",
	model.EquipPrimaryPump: "Primary Pump",
	model.EquipBypassValve: "Bypass Valve",
	model.EquipDHWPump:     "DHW Recirc Pump",
}

var systemNames = map[string]string{
	engine.SystemSnowmelt: "Snowmelt",
	engine.SystemDHW:      "DHW Recirculation",
	engine.SystemEco:      "Eco Mode",
}

var setpointNames = map[string]string{
	engine.SetpointGlycolHigh:  "Glycol High Temp",
	engine.SetpointGlycolDelta: "Glycol Delta T",
	engine.SetpointDHWHigh:     "DHW High Temp",
	engine.SetpointDHWDelta:    "DHW Delta T",
	engine.SetpointEcoHigh:     "Eco High Temp",
	engine.SetpointEcoDelta:    "Eco Delta T",
}

// discoveryMessages builds the full Home Assistant entity set for one
// controller. base is the controller's topic root; every entity hangs
// off the shared availability topic so HA marks the whole device
// unavailable when the controller drops.
func discoveryMessages(base string) []discoveryMessage {
	device := discoveryDevice{
		Identifiers:  []string{"snowmelt_controller"},
		Name:         "Snowmelt Controller",
		Manufacturer: "DIY",
		Model:        "Raspberry Pi Relay Board",
	}
	avail := base + "/status"

	var msgs []discoveryMessage

	add := func(component, objectID string, cfg discoveryConfig) {
		cfg.UniqueID = "snowmelt_" + objectID
		cfg.AvailabilityTopic = avail
		cfg.Device = device
		msgs = append(msgs, discoveryMessage{component: component, objectID: objectID, config: cfg})
	}

	for _, role := range model.SensorRoles {
		add("sensor", string(role)+"_temperature", discoveryConfig{
			Name:              sensorNames[role] + " Temperature",
			StateTopic:        base + "/sensor/" + string(role) + "/temperature",
			UnitOfMeasurement: "°F",
			DeviceClass:       "temperature",
			StateClass:        "measurement",
		})
		add("binary_sensor", string(role)+"_fault", discoveryConfig{
			Name:        sensorNames[role] + " Fault",
			StateTopic:  base + "/sensor/" + string(role) + "/available",
			DeviceClass: "problem",
			PayloadOn:   "offline",
			PayloadOff:  "online",
		})
	}

	add("sensor", "heat_exchanger_delta_t", discoveryConfig{
		Name:              "Heat Exchanger Delta T",
		StateTopic:        base + "/heat_exchanger/delta_t",
		UnitOfMeasurement: "°F",
		StateClass:        "measurement",
	})

	for _, role := range model.EquipmentRoles {
		prefix := base + "/equipment/" + string(role)
		add("binary_sensor", string(role)+"_state", discoveryConfig{
			Name:        equipmentNames[role],
			StateTopic:  prefix + "/state",
			DeviceClass: "running",
		})
		add("select", string(role)+"_mode", discoveryConfig{
			Name:         equipmentNames[role] + " Mode",
			StateTopic:   prefix + "/mode",
			CommandTopic: prefix + "/mode/set",
			Options:      []string{"auto", "on", "off"},
		})
		add("binary_sensor", string(role)+"_fault", discoveryConfig{
			Name:        equipmentNames[role] + " Fault",
			StateTopic:  prefix + "/fault",
			DeviceClass: "problem",
		})
	}

	for _, system := range []string{engine.SystemSnowmelt, engine.SystemDHW, engine.SystemEco} {
		add("switch", "system_"+system, discoveryConfig{
			Name:         systemNames[system],
			StateTopic:   base + "/system/" + system,
			CommandTopic: base + "/system/" + system + "/set",
		})
	}

	add("binary_sensor", "eco_active", discoveryConfig{
		Name:       "Eco Window Active",
		StateTopic: base + "/system/eco_active",
	})

	for _, sp := range []string{
		engine.SetpointGlycolHigh, engine.SetpointGlycolDelta,
		engine.SetpointDHWHigh, engine.SetpointDHWDelta,
		engine.SetpointEcoHigh, engine.SetpointEcoDelta,
	} {
		cfg := discoveryConfig{
			Name:              setpointNames[sp],
			StateTopic:        base + "/setpoint/" + sp,
			CommandTopic:      base + "/setpoint/" + sp + "/set",
			UnitOfMeasurement: "°F",
			Min:               50,
			Max:               180,
			Step:              0.5,
			Mode:              "box",
		}
		if strings.HasSuffix(sp, "_delta") {
			cfg.Min = 0
			cfg.Max = 50
		}
		add("number", "setpoint_"+sp, cfg)
	}

	add("sensor", "zone_snowmelt", discoveryConfig{
		Name:       "Snowmelt Zone State",
		StateTopic: base + "/zone/snowmelt/state",
		Icon:       "mdi:snowflake-melt",
	})
	add("sensor", "zone_dhw", discoveryConfig{
		Name:       "DHW Zone State",
		StateTopic: base + "/zone/dhw/state",
		Icon:       "mdi:water-boiler",
	})

	add("number", "shutdown_timer", discoveryConfig{
		Name:              "Snowmelt Shutdown Timer",
		StateTopic:        base + "/timer/remaining_minutes",
		CommandTopic:      base + "/timer/set",
		UnitOfMeasurement: "min",
		Max:               720,
		Step:              5,
		Mode:              "box",
		Icon:              "mdi:timer-outline",
	})

	return msgs
}

func (b *Bridge) publishDiscovery(client mqtt.Client) {
	msgs := discoveryMessages(b.cfg.BaseTopic)
	for _, msg := range msgs {
		payload, err := json.Marshal(msg.config)
		if err != nil {
			log.Error().Err(err).Str("object_id", msg.objectID).Msg("Failed to encode discovery config")
			continue
		}
		topic := b.cfg.DiscoveryPrefix + "/" + msg.component + "/snowmelt_controller/" + msg.objectID + "/config"
		client.Publish(topic, 1, true, payload)
	}
	log.Info().Int("entities", len(msgs)).Msg("Published Home Assistant discovery configs")
}
