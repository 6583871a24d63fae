package notify

import (
	"context"

	awsclients "travel-concierge/internal/common/aws"
	"travel-concierge/internal/common/config"
	"travel-concierge/internal/common/logger"
)

// FromConfig builds the notifier from the integrations.aws settings. When the
// AWS configuration cannot be resolved both channels are switched off.
func FromConfig(ctx context.Context, cfg *config.Config, log logger.Logger) *Notifier {
	awsCfg := cfg.Integrations.AWS
	ncfg := Config{
		EmailEnabled: awsCfg.SES.Enabled,
		SMSEnabled:   awsCfg.SNS.Enabled,
		FromEmail:    awsCfg.SES.FromEmail,
		OpsEmail:     awsCfg.SES.OpsEmail,
	}

	var sesClient SESService
	var snsClient SNSService
	if ncfg.EmailEnabled || ncfg.SMSEnabled {
		sdkCfg, err := awsclients.LoadConfig(ctx, awsCfg.Region)
		if err != nil {
			log.Warn("aws config unavailable, notifications disabled", map[string]interface{}{"error": err.Error()})
			ncfg.EmailEnabled, ncfg.SMSEnabled = false, false
		} else {
			if ncfg.EmailEnabled {
				sesClient = awsclients.NewSESClient(sdkCfg)
			}
			if ncfg.SMSEnabled {
				snsClient = awsclients.NewSNSClient(sdkCfg)
			}
		}
	}
	return NewNotifier(ncfg, sesClient, snsClient, log)
}
