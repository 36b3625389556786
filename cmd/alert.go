package cmd

import (
	"encoding/json"
	"fmt"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/kestrel-ops/kestrel/config"
	"github.com/kestrel-ops/kestrel/core/model"
	"github.com/kestrel-ops/kestrel/infra/mqtt"
)

var (
	alertLat      float64
	alertLon      float64
	alertPriority int
)

var alertCmd = &cobra.Command{
	Use:   "alert",
	Short: "Inject a test alert on the intake topic",
	RunE:  injectAlert,
}

func init() {
	alertCmd.Flags().Float64Var(&alertLat, "lat", 0, "alert latitude")
	alertCmd.Flags().Float64Var(&alertLon, "lon", 0, "alert longitude")
	alertCmd.Flags().IntVar(&alertPriority, "priority", int(model.PriorityMedium), "alert priority (0=low 1=medium 2=high)")
	rootCmd.AddCommand(alertCmd)
}

func injectAlert(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	mqttCfg := cfg.MQTT
	mqttCfg.ClientID = fmt.Sprintf("alert-inject-%d", time.Now().UnixNano())
	opts, err := mqtt.NewClientOptions(mqttCfg)
	if err != nil {
		return err
	}
	client := paho.NewClient(opts)
	if token := client.Connect(); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	defer client.Disconnect(250)

	a := model.Alert{
		ID:         uuid.NewString(),
		Lat:        alertLat,
		Lon:        alertLon,
		Priority:   model.AlertPriority(alertPriority),
		Confidence: 1,
		CreatedAt:  time.Now(),
	}
	if err := a.Validate(); err != nil {
		return err
	}
	payload, err := json.Marshal(a)
	if err != nil {
		return err
	}
	if token := client.Publish(mqttCfg.AlertTopic, 1, false, payload); token.Wait() && token.Error() != nil {
		return token.Error()
	}
	fmt.Println(a.ID)
	return nil
}
