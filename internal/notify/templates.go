package notify

import (
	"fmt"
	"strings"
)

func Registration(name string) string {
	return fmt.Sprintf(`🎓 *Bienvenue à la Masterclass IA !*

Bonjour %s,

Votre inscription a été enregistrée avec succès !

Vous allez maintenant passer le test de pré-évaluation (10 questions).

Score minimum requis : 50%%

Bonne chance ! 🍀`, name)
}

func PreTestPassed(name string, score, max, pct int) string {
	return fmt.Sprintf(`✅ *Test de Pré-Évaluation Réussi !*

Félicitations %s !

Votre score : %d/%d (%d%%)

Votre inscription est maintenant validée. Vous recevrez bientôt les détails de la masterclass.

À très bientôt ! 🎉`, name, score, max, pct)
}

func PreTestFailed(name string, score, max, pct int) string {
	return fmt.Sprintf(`❌ *Test de Pré-Évaluation Non Validé*

Bonjour %s,

Votre score : %d/%d (%d%%)

Score minimum requis : 50%%

Veuillez contacter l'administrateur pour plus d'informations.`, name, score, max, pct)
}

func PostTestReminder(name string) string {
	return fmt.Sprintf(`📝 *Test Post-Masterclass Disponible*

Bonjour %s,

Merci d'avoir participé à la masterclass !

Le test post-masterclass est maintenant disponible pour évaluer vos acquis.

Accédez au test via votre lien personnel.

Bonne chance ! 🎯`, name)
}

// PostTestCompleted mentions progress only when it is positive.
func PostTestCompleted(name string, score, max, pct, improvement int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "🎓 *Test Post-Masterclass Terminé*\n\nFélicitations %s !\n\nVotre score : %d/%d (%d%%)\n", name, score, max, pct)
	if improvement > 0 {
		fmt.Fprintf(&b, "Progression : +%d%%\n", improvement)
	}
	b.WriteString("\nMerci d'avoir participé à notre masterclass !\n\nContinuez à apprendre ! 🚀")
	return b.String()
}

func LoginLink(name, link string) string {
	return fmt.Sprintf(`🔑 *Votre lien de connexion*

Bonjour %s,

Accédez à votre espace étudiant :
%s

Ce lien est personnel, ne le partagez pas.`, name, link)
}
