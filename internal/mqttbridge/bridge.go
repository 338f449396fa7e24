package mqttbridge

import (
	"fmt"
	"os"
	"strconv"
	"sync"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/rs/zerolog/log"

	"snowmelt-controller/internal/config"
	"snowmelt-controller/internal/engine"
)

// Bridge connects the control engine to an MQTT broker: it publishes
// state after every cycle and turns inbound set-topic messages into
// engine commands. Home Assistant entities are announced over MQTT
// discovery on every (re)connect.
type Bridge struct {
	client mqtt.Client
	cfg    config.MQTT
	engine *engine.Engine

	mu        sync.Mutex
	published map[string]string
}

func New(cfg config.MQTT, eng *engine.Engine) *Bridge {
	b := &Bridge{
		cfg:       cfg,
		engine:    eng,
		published: map[string]string{},
	}

	hostname, _ := os.Hostname()
	clientID := fmt.Sprintf("snowmelt-%s-%d", hostname, os.Getpid())

	opts := mqtt.NewClientOptions().
		AddBroker(cfg.BrokerURL).
		SetClientID(clientID).
		SetUsername(cfg.Username).
		SetPassword(cfg.Password).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5*time.Second).
		SetWill(cfg.BaseTopic+"/status", "offline", 1, true).
		SetOnConnectHandler(b.onConnect).
		SetConnectionLostHandler(func(_ mqtt.Client, err error) {
			log.Warn().Err(err).Msg("MQTT connection lost")
		})

	b.client = mqtt.NewClient(opts)
	return b
}

// Connect blocks until the first broker connection succeeds or fails.
// With ConnectRetry enabled the client keeps retrying in the background
// after a transient failure.
func (b *Bridge) Connect() error {
	log.Info().Str("broker", b.cfg.BrokerURL).Str("base_topic", b.cfg.BaseTopic).Msg("Connecting to MQTT broker")
	token := b.client.Connect()
	token.Wait()
	return token.Error()
}

func (b *Bridge) onConnect(client mqtt.Client) {
	log.Info().Msg("MQTT connected")

	client.Publish(b.cfg.BaseTopic+"/status", 1, true, "online")

	// Retained state on the broker may be stale after a reconnect, so
	// the next PublishState must republish everything.
	b.resetCache()

	for _, filter := range []string{
		b.cfg.BaseTopic + "/+/set",
		b.cfg.BaseTopic + "/+/+/set",
		b.cfg.BaseTopic + "/+/+/+/set",
	} {
		if token := client.Subscribe(filter, 1, b.handleMessage); token.Wait() && token.Error() != nil {
			log.Error().Err(token.Error()).Str("filter", filter).Msg("MQTT subscribe failed")
		}
	}

	b.publishDiscovery(client)
}

func (b *Bridge) handleMessage(_ mqtt.Client, msg mqtt.Message) {
	cmd, err := parseCommand(b.cfg.BaseTopic, msg.Topic(), string(msg.Payload()))
	if err != nil {
		log.Warn().Err(err).Str("topic", msg.Topic()).Str("payload", string(msg.Payload())).Msg("Ignoring MQTT command")
		return
	}

	log.Debug().Str("topic", msg.Topic()).Str("payload", string(msg.Payload())).Msg("MQTT command received")
	b.engine.Submit(cmd)
}

// PublishState pushes one engine cycle's state to the broker. Topics
// whose payload is unchanged since the last publish are skipped.
func (b *Bridge) PublishState(st engine.State) {
	for topic, payload := range stateTopics(b.cfg.BaseTopic, st) {
		if !b.changed(topic, payload) {
			continue
		}
		b.client.Publish(topic, 0, true, payload)
	}
}

// Close announces unavailability and disconnects cleanly so the broker
// does not have to wait for the LWT.
func (b *Bridge) Close() {
	token := b.client.Publish(b.cfg.BaseTopic+"/status", 1, true, "offline")
	token.WaitTimeout(2 * time.Second)
	b.client.Disconnect(250)
	log.Info().Msg("MQTT disconnected")
}

func (b *Bridge) changed(topic, payload string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.published[topic] == payload {
		return false
	}
	b.published[topic] = payload
	return true
}

func (b *Bridge) resetCache() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.published = map[string]string{}
}

// stateTopics flattens a cycle state into topic -> payload pairs. An
// unavailable sensor keeps its last retained temperature; only the
// availability topic flips.
func stateTopics(base string, st engine.State) map[string]string {
	m := map[string]string{}

	for role, s := range st.Sensors {
		prefix := base + "/sensor/" + string(role)
		m[prefix+"/available"] = availability(s.Available)
		if s.Available {
			m[prefix+"/temperature"] = formatTemp(s.TempF)
		}
	}

	for role, eq := range st.Equipment {
		prefix := base + "/equipment/" + string(role)
		m[prefix+"/state"] = onOff(eq.On)
		m[prefix+"/mode"] = string(eq.Mode)
		m[prefix+"/fault"] = onOff(eq.Fault)
	}

	m[base+"/system/snowmelt"] = onOff(st.Settings.SnowmeltEnabled)
	m[base+"/system/dhw"] = onOff(st.Settings.DHWEnabled)
	m[base+"/system/eco"] = onOff(st.Settings.EcoEnabled)
	m[base+"/system/eco_active"] = onOff(st.EcoActive)

	m[base+"/zone/snowmelt/state"] = string(st.SnowmeltState)
	m[base+"/zone/dhw/state"] = string(st.DHWState)

	m[base+"/setpoint/"+engine.SetpointGlycolHigh] = formatTemp(st.Settings.Glycol.HighTemp)
	m[base+"/setpoint/"+engine.SetpointGlycolDelta] = formatTemp(st.Settings.Glycol.DeltaT)
	m[base+"/setpoint/"+engine.SetpointDHWHigh] = formatTemp(st.Settings.DHW.HighTemp)
	m[base+"/setpoint/"+engine.SetpointDHWDelta] = formatTemp(st.Settings.DHW.DeltaT)
	m[base+"/setpoint/"+engine.SetpointEcoHigh] = formatTemp(st.Settings.Eco.HighTemp)
	m[base+"/setpoint/"+engine.SetpointEcoDelta] = formatTemp(st.Settings.Eco.DeltaT)

	m[base+"/eco_schedule"] = st.Settings.EcoStart + "-" + st.Settings.EcoEnd

	m[base+"/heat_exchanger/available"] = availability(st.HXDeltaTAvailable)
	if st.HXDeltaTAvailable {
		m[base+"/heat_exchanger/delta_t"] = formatTemp(st.HXDeltaT)
	}

	m[base+"/timer/active"] = onOff(st.TimerActive)
	m[base+"/timer/remaining_minutes"] = strconv.Itoa(st.TimerRemainingSecs / 60)

	return m
}

func formatTemp(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

func onOff(b bool) string {
	if b {
		return "ON"
	}
	return "OFF"
}

func availability(ok bool) string {
	if ok {
		return "online"
	}
	return "offline"
}
