package session

import (
	"splice/internal/document"
	"splice/internal/history"
)

// Headless answers prompts from fixed settings. The zero value is the most
// conservative: it cancels closes of modified documents, declines recovery,
// never overwrites and never relocates.
type Headless struct {
	OnClose        CloseChoice
	AcceptRecovery bool
	// TryLenient asks for one lenient parse before giving up on an open.
	TryLenient bool
	// UseNewestBackup makes open failures and OpenBackup pick the newest backup.
	UseNewestBackup bool
	Overwrite       bool
	Relocate        bool
}

func (h Headless) ConfirmClose(document.Snapshot) CloseChoice { return h.OnClose }

func (h Headless) SavePath(document.Snapshot) (string, bool) { return "", false }

func (h Headless) OfferRecovery(RecoveryOffer) bool { return h.AcceptRecovery }

func (h Headless) OpenFailed(f OpenFailure) OpenChoice {
	if h.TryLenient && !f.LenientTried {
		return OpenChoice{Action: OpenRecover}
	}
	if h.UseNewestBackup && len(f.Backups) > 0 {
		return OpenChoice{Action: OpenFromBackup, BackupPath: f.Backups[0].BackupPath}
	}
	return OpenChoice{Action: OpenDecline}
}

func (h Headless) ChooseBackup(_ string, backups []history.Backup) (string, bool) {
	if !h.UseNewestBackup || len(backups) == 0 {
		return "", false
	}
	return backups[0].BackupPath, true
}

func (h Headless) ConfirmOverwrite(string) bool { return h.Overwrite }

func (h Headless) ConfirmRelocation(string, string) bool { return h.Relocate }

func (h Headless) ConfirmRevert(document.Snapshot) bool { return true }
