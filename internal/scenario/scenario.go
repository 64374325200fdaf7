// Package scenario generates the roleplay setup: the training exercises,
// the simulated lead persona and the prompts driving the agent and the
// post-call analysis. All user-facing content is in European Portuguese.
package scenario

import (
	"math/rand"
	"net/url"
)

// ExerciseType identifies one of the training formats.
type ExerciseType string

const (
	Qualify     ExerciseType = "Qualify call"
	ColdQualify ExerciseType = "Cold Qualify call"
	Emotion     ExerciseType = "Emotion Sales call"
	Proposal    ExerciseType = "Proposal Sales Call"
	Objections  ExerciseType = "Objections sales call"
)

// Difficulty adjusts how hard the simulated lead pushes back.
type Difficulty string

const (
	Easy      Difficulty = "Fácil"
	Medium    Difficulty = "Médio"
	Difficult Difficulty = "Difícil"
)

// DiscType is the seller's DISC behavioral profile, used to pick the most
// challenging counter-persona.
type DiscType string

const (
	DiscD DiscType = "D"
	DiscI DiscType = "I"
	DiscS DiscType = "S"
	DiscC DiscType = "C"
)

// Exercise is one selectable training call.
type Exercise struct {
	ID          string       `json:"id"`
	Type        ExerciseType `json:"type"`
	Title       string       `json:"title"`
	Description string       `json:"description"`
}

// Gender of the generated lead; it decides the agent's voice.
type Gender string

const (
	Male   Gender = "male"
	Female Gender = "female"
)

// ScenarioData is the randomized lead the seller will face. Fields not
// relevant to the chosen exercise stay empty.
type ScenarioData struct {
	Name               string `json:"name"`
	Gender             Gender `json:"gender"`
	AvatarURL          string `json:"avatarUrl"`
	Brand              string `json:"brand,omitempty"`
	Experience         string `json:"experience,omitempty"`
	Revenue            string `json:"revenue,omitempty"`
	PropertiesAcquired string `json:"propertiesAcquired,omitempty"`
	DigitalAdoption    string `json:"digitalAdoption,omitempty"`
	DreamOrFear        string `json:"dreamOrFear,omitempty"`
	InitialPhrase      string `json:"initialPhrase"`
	Context            string `json:"context"`
}

// Exercises is the full training catalogue, in display order.
var Exercises = []Exercise{
	{
		ID:          "qualify",
		Type:        Qualify,
		Title:       "Chamada de Qualificação",
		Description: "O lead preencheu um formulário no Facebook. Qualifique-o e agende uma reunião.",
	},
	{
		ID:          "cold_qualify",
		Type:        ColdQualify,
		Title:       "Chamada Fria de Qualificação",
		Description: "O lead nunca ouviu falar de si. Capte a atenção, qualifique e agende uma reunião.",
	},
	{
		ID:          "emotion",
		Type:        Emotion,
		Title:       "Reunião: Emocional",
		Description: "Já tem uma reunião agendada. Crie rapport e descubra os sonhos e medos do lead.",
	},
	{
		ID:          "proposal",
		Type:        Proposal,
		Title:       "Reunião: Apresentação de Proposta",
		Description: "Apresente a sua proposta, ligando-a diretamente aos sonhos ou medos do lead.",
	},
	{
		ID:          "objections",
		Type:        Objections,
		Title:       "Reunião: Gestão de Objeções",
		Description: "O lead tem dúvidas sobre a proposta. Ultrapasse as objeções com confiança.",
	},
}

// FindExercise looks an exercise up by its id.
func FindExercise(id string) (Exercise, bool) {
	for _, e := range Exercises {
		if e.ID == id {
			return e, true
		}
	}
	return Exercise{}, false
}

var (
	maleNames   = []string{"João Silva", "Pedro Martins", "Miguel Pereira", "Rui Almeida", "Tiago Santos"}
	femaleNames = []string{"Ana Costa", "Sofia Alves", "Catarina Santos", "Mariana Ferreira", "Inês Rodrigues"}
	brands      = []string{"RE/MAX Vantagem", "Century 21", "ERA Imobiliária", "KW Lead", "Zome", "IAD Portugal"}
	experiences = []string{"1 ano", "3 anos", "5 anos", "8 anos", "10 anos"}
	revenues    = []string{"€60,000", "€85,000", "€120,000", "€45,000", "€250,000"}
	propVolumes = []string{"15 por ano", "25 por ano", "10 por ano", "40 por ano"}
	digital     = []string{"Iniciante", "Intermédio", "Cético", "Experiente"}
	dreamsFears = []string{
		"Medo de ficar para trás da concorrência",
		"Sonho de ter mais tempo livre para a família",
		"Medo da instabilidade do mercado",
		"Sonho de ser o consultor número 1 da sua zona",
	}
)

func pick(rng *rand.Rand, arr []string) string {
	return arr[rng.Intn(len(arr))]
}

// Generate builds a randomized lead for the exercise type. rng may be nil,
// in which case the shared source is used.
func Generate(t ExerciseType, rng *rand.Rand) ScenarioData {
	if rng == nil {
		rng = rand.New(rand.NewSource(rand.Int63()))
	}
	gender := Male
	names := maleNames
	avatarKind := "boy"
	if rng.Intn(2) == 0 {
		gender = Female
		names = femaleNames
		avatarKind = "girl"
	}
	name := pick(rng, names)

	d := ScenarioData{
		Name:      name,
		Gender:    gender,
		AvatarURL: "https://avatar.iran.liara.run/public/" + avatarKind + "?username=" + url.QueryEscape(name),
		Brand:     pick(rng, brands),
	}

	switch t {
	case Qualify:
		d.Experience = pick(rng, experiences)
		d.Revenue = pick(rng, revenues)
		d.InitialPhrase = "Alô?"
		d.Context = "Este lead viu e preencheu um anúncio da Digital Revolution no Facebook. Já demonstrou algum interesse na solução da empresa."
	case ColdQualify:
		d.PropertiesAcquired = pick(rng, propVolumes)
		d.InitialPhrase = "Alô?"
		d.Context = "Este lead nunca ouviu falar da Digital Revolution e não interagiu com a marca. Está a ser apanhado de surpresa."
	case Emotion:
		d.Revenue = pick(rng, revenues)
		d.Experience = pick(rng, experiences)
		d.DigitalAdoption = pick(rng, digital)
		d.InitialPhrase = "Olá, vamos começar a nossa reunião então?"
		d.Context = "Uma reunião já foi agendada recentemente. O objetivo do vendedor é construir uma relação e identificar medos ou sonhos."
	case Proposal:
		d.Experience = pick(rng, experiences)
		d.DreamOrFear = pick(rng, dreamsFears)
		d.Revenue = pick(rng, revenues)
		d.InitialPhrase = "Ok, eu percebo, mas como é que me pode ajudar com isto?"
		d.Context = "O vendedor já conhece os medos e sonhos do lead e deve agora apresentar a proposta, ligando os benefícios a esses pontos."
	case Objections:
		d.Experience = pick(rng, experiences)
		d.DreamOrFear = pick(rng, dreamsFears)
		d.Revenue = pick(rng, revenues)
		d.InitialPhrase = "Ok, eu percebo, mas tenho algumas dúvidas..."
		d.Context = "O lead tem objeções sobre a proposta. O vendedor tem de ser capaz de as ultrapassar para que deixem de existir."
	}
	return d
}

// Voice maps the lead's gender to a prebuilt agent voice.
func (d ScenarioData) Voice() string {
	if d.Gender == Female {
		return "Charon"
	}
	return "Puck"
}
